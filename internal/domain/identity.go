package domain

// OrganizerDetails carries the organizer profile attached after the
// profile-completion step.
type OrganizerDetails struct {
	Name    string `json:"name,omitempty"`
	Type    string `json:"type,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
}

// OrganizerDetailsPatch holds partial organizer updates; nil fields are
// left untouched by a merge.
type OrganizerDetailsPatch struct {
	Name    *string
	Type    *string
	Address *string
	Phone   *string
	Website *string
}

// Identity is the authenticated user's profile and role set.
// Timestamp fields are opaque pass-through strings from the backend.
type Identity struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Email            string            `json:"email"`
	Roles            []Role            `json:"roles"`
	CurrentRole      Role              `json:"currentRole"`
	EmailVerifiedAt  string            `json:"emailVerifiedAt,omitempty"`
	CreatedAt        string            `json:"createdAt,omitempty"`
	UpdatedAt        string            `json:"updatedAt,omitempty"`
	OrganizerDetails *OrganizerDetails `json:"organizerDetails,omitempty"`
}

// Normalize enforces the role invariants after deserialization: a non-empty
// role set drawn from the closed enumeration, and a current role that is a
// member of it.
func (i *Identity) Normalize() {
	raw := make([]string, 0, len(i.Roles))
	for _, role := range i.Roles {
		raw = append(raw, string(role))
	}
	i.Roles = ParseRoles(raw)
	if !ValidRole(i.CurrentRole) || !ContainsRole(i.Roles, i.CurrentRole) {
		i.CurrentRole = ActiveRole(i.Roles)
	}
}

// HasRole reports whether the identity holds the given role.
func (i *Identity) HasRole(role Role) bool {
	if i == nil {
		return false
	}
	return ContainsRole(i.Roles, role)
}

// ApplyOrganizerPatch merges non-nil fields into the organizer details,
// creating the record on first update.
func (i *Identity) ApplyOrganizerPatch(patch OrganizerDetailsPatch) {
	if i.OrganizerDetails == nil {
		i.OrganizerDetails = &OrganizerDetails{}
	}
	if patch.Name != nil {
		i.OrganizerDetails.Name = *patch.Name
	}
	if patch.Type != nil {
		i.OrganizerDetails.Type = *patch.Type
	}
	if patch.Address != nil {
		i.OrganizerDetails.Address = *patch.Address
	}
	if patch.Phone != nil {
		i.OrganizerDetails.Phone = *patch.Phone
	}
	if patch.Website != nil {
		i.OrganizerDetails.Website = *patch.Website
	}
}

// Clone returns a deep copy so callers cannot mutate manager state.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	copied := *i
	copied.Roles = append([]Role(nil), i.Roles...)
	if i.OrganizerDetails != nil {
		details := *i.OrganizerDetails
		copied.OrganizerDetails = &details
	}
	return &copied
}

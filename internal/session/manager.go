// Package session owns the client-side authentication lifecycle: the
// in-memory identity, its persistent restore, background revalidation and
// the expiry warning.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-client/internal/config"
	"github.com/spec-kit/marketplace-client/internal/credstore"
	"github.com/spec-kit/marketplace-client/internal/domain"
	"github.com/spec-kit/marketplace-client/internal/events"
	"github.com/spec-kit/marketplace-client/internal/expiry"
	"github.com/spec-kit/marketplace-client/internal/gateway"
	"github.com/spec-kit/marketplace-client/pkg/util"
)

// Fallback token lifetime when the backend omits expiresInMinutes.
const defaultTokenTTLMinutes = 480

// Gateway abstracts the remote identity backend.
type Gateway interface {
	Login(ctx context.Context, email, password string) (*gateway.LoginResult, error)
	Register(ctx context.Context, req gateway.RegisterRequest) (*gateway.RegisterResult, error)
	VerifyOTP(ctx context.Context, email, code string) (*gateway.LoginResult, error)
	ResendOTP(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	Logout(ctx context.Context, token string) error
	WhoAmI(ctx context.Context, token string) (*gateway.UserPayload, error)
}

// Dependencies encapsulates collaborator requirements for the manager.
type Dependencies struct {
	Store      credstore.Store
	Gateway    Gateway
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// Clock defaults to one over Store; tests inject a fixed time source.
	Clock *expiry.Clock
}

// Manager orchestrates the session: it owns the in-memory identity and all
// mutation and query operations the application sees. Concurrent login or
// verify calls are not serialized; the last response wins.
type Manager struct {
	cfg        config.SessionConfig
	store      credstore.Store
	gateway    Gateway
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      *expiry.Clock

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu             sync.Mutex
	identity       *domain.Identity
	loading        bool
	tokenExpiresAt time.Time
	pendingEmail   string

	revalidateCancel context.CancelFunc
	warnTimer        *time.Timer
	closed           bool
}

// NewManager builds a session manager. The instance is anonymous and
// loading until Initialize runs.
func NewManager(cfg config.SessionConfig, deps Dependencies) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher()
	}
	clock := deps.Clock
	if clock == nil {
		clock = expiry.NewClock(deps.Store)
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:        cfg,
		store:      deps.Store,
		gateway:    deps.Gateway,
		dispatcher: dispatcher,
		logger:     logger,
		clock:      clock,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		loading:    true,
	}
}

// Initialize restores a persisted session. An expired token is discarded, a
// corrupted identity record tears the whole persisted session down, and the
// pending verification email survives either way unless corruption was
// detected.
func (m *Manager) Initialize(ctx context.Context) {
	defer m.setLoading(false)

	_, hasToken := m.store.Get(ctx, credstore.KeyToken)
	if hasToken && m.clock.IsExpired(ctx) {
		m.store.Remove(ctx, credstore.KeyToken)
		m.store.Remove(ctx, credstore.KeyTokenExpiresAt)
		hasToken = false
		m.logger.Info("expired token discarded during restore")
	}

	if raw, ok := m.store.Get(ctx, credstore.KeyIdentity); ok {
		switch {
		case !hasToken:
			// identity without a live token violates the session invariant
			m.store.Remove(ctx, credstore.KeyIdentity)
		default:
			var ident domain.Identity
			if err := json.Unmarshal([]byte(raw), &ident); err != nil {
				m.store.Remove(ctx, credstore.KeyToken)
				m.store.Remove(ctx, credstore.KeyTokenExpiresAt)
				m.store.Remove(ctx, credstore.KeyIdentity)
				m.store.Remove(ctx, credstore.KeyPendingEmail)
				m.logger.Warn("corrupted persisted identity discarded", zap.Error(err))
			} else {
				ident.Normalize()
				expiresAt, _ := m.clock.ExpiresAt(ctx)
				m.mu.Lock()
				m.identity = &ident
				m.tokenExpiresAt = expiresAt
				m.startBackgroundLocked()
				m.mu.Unlock()
			}
		}
	}

	if email, ok := m.store.Get(ctx, credstore.KeyPendingEmail); ok {
		m.mu.Lock()
		m.pendingEmail = email
		m.mu.Unlock()
	}
}

// Login authenticates with email and password. Failures are returned as
// AuthError values carrying the backend message.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return util.NewRejected("email and password are required")
	}

	m.setLoading(true)
	defer m.setLoading(false)

	result, err := m.gateway.Login(ctx, email, password)
	if err != nil {
		return err
	}
	m.establishSession(ctx, result)
	return nil
}

// Register creates an account and records the email awaiting OTP
// verification. It does not authenticate.
func (m *Manager) Register(ctx context.Context, req gateway.RegisterRequest) error {
	m.setLoading(true)
	defer m.setLoading(false)

	result, err := m.gateway.Register(ctx, req)
	if err != nil {
		return err
	}

	m.store.Set(ctx, credstore.KeyPendingEmail, result.Email)
	m.mu.Lock()
	m.pendingEmail = result.Email
	m.mu.Unlock()
	return nil
}

// VerifyOTP confirms the registration code, authenticates, and clears the
// pending verification email.
func (m *Manager) VerifyOTP(ctx context.Context, email, code string) error {
	m.setLoading(true)
	defer m.setLoading(false)

	result, err := m.gateway.VerifyOTP(ctx, email, code)
	if err != nil {
		return err
	}

	m.establishSession(ctx, result)
	m.store.Remove(ctx, credstore.KeyPendingEmail)
	m.mu.Lock()
	m.pendingEmail = ""
	m.mu.Unlock()
	return nil
}

// ResendOTP asks the backend to re-send the pending verification code.
// Best-effort: failures are logged, state never changes.
func (m *Manager) ResendOTP(ctx context.Context) {
	m.mu.Lock()
	email := m.pendingEmail
	m.mu.Unlock()
	if email == "" {
		return
	}
	if err := m.gateway.ResendOTP(ctx, email); err != nil {
		m.logger.Warn("resend otp failed", zap.Error(err))
	}
}

// ForgotPassword records the email as awaiting verification and notifies
// the backend best-effort.
func (m *Manager) ForgotPassword(ctx context.Context, email string) {
	if email == "" {
		return
	}
	m.store.Set(ctx, credstore.KeyPendingEmail, email)
	m.mu.Lock()
	m.pendingEmail = email
	m.mu.Unlock()
	if err := m.gateway.ForgotPassword(ctx, email); err != nil {
		m.logger.Warn("forgot password request failed", zap.Error(err))
	}
}

// Logout tears the session down unconditionally. The backend call is
// best-effort and never blocks local teardown; calling Logout on an
// anonymous session is a no-op.
func (m *Manager) Logout(ctx context.Context) {
	m.setLoading(true)
	defer m.setLoading(false)

	if token, ok := m.store.Get(ctx, credstore.KeyToken); ok {
		if err := m.gateway.Logout(ctx, token); err != nil {
			m.logger.Warn("backend logout failed", zap.Error(err))
		}
	}

	wasAuthenticated := m.IsAuthenticated()
	m.teardown(ctx)
	if wasAuthenticated {
		m.publish(ctx, events.EventLoggedOut, nil)
	}
}

// SwitchRole activates a role the identity already holds; any other role is
// a no-op.
func (m *Manager) SwitchRole(ctx context.Context, role domain.Role) {
	m.mu.Lock()
	if m.identity == nil || !m.identity.HasRole(role) {
		m.mu.Unlock()
		return
	}
	m.identity.CurrentRole = role
	snapshot := m.identity.Clone()
	m.mu.Unlock()

	m.persistIdentity(ctx, snapshot)
}

// UpdateOrganizerDetails merges the patch into the identity's organizer
// profile and persists it; a no-op without an identity.
func (m *Manager) UpdateOrganizerDetails(ctx context.Context, patch domain.OrganizerDetailsPatch) {
	m.mu.Lock()
	if m.identity == nil {
		m.mu.Unlock()
		return
	}
	m.identity.ApplyOrganizerPatch(patch)
	snapshot := m.identity.Clone()
	m.mu.Unlock()

	m.persistIdentity(ctx, snapshot)
}

// Identity returns a copy of the current identity, or nil when anonymous.
func (m *Manager) Identity() *domain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity.Clone()
}

// IsAuthenticated reports whether an identity is present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity != nil
}

// IsLoading reports whether an auth operation or the initial restore is in
// flight.
func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// PendingVerificationEmail returns the email awaiting OTP confirmation.
func (m *Manager) PendingVerificationEmail() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingEmail
}

// HasRole reports whether the identity holds the role; false when anonymous.
func (m *Manager) HasRole(role domain.Role) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity.HasRole(role)
}

// CanAccessDashboard reports whether the identity may open the organizer or
// admin dashboards.
func (m *Manager) CanAccessDashboard() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity.HasRole(domain.RoleEOOwner) || m.identity.HasRole(domain.RoleSuperAdmin)
}

// TokenExpiresAt returns the known token expiration, if any.
func (m *Manager) TokenExpiresAt() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenExpiresAt, !m.tokenExpiresAt.IsZero()
}

// Close stops background tasks. It does not log the user out.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.stopBackgroundLocked()
	m.baseCancel()
}

// establishSession persists the credentials, then installs the identity and
// starts background tasks. Persisted state is written before the in-memory
// identity becomes visible.
func (m *Manager) establishSession(ctx context.Context, result *gateway.LoginResult) {
	minutes := result.ExpiresInMinutes
	if minutes <= 0 {
		minutes = defaultTokenTTLMinutes
	}

	m.store.Set(ctx, credstore.KeyToken, result.Token)
	expiresAt := m.clock.StoreExpiration(ctx, minutes)

	ident := identityFromPayload(result.User)
	m.persistIdentity(ctx, ident)

	m.mu.Lock()
	m.identity = ident
	m.tokenExpiresAt = expiresAt
	m.startBackgroundLocked()
	m.mu.Unlock()

	m.publish(ctx, events.EventLoggedIn, events.LoggedInPayload{
		IdentityID: ident.ID,
		Role:       string(ident.CurrentRole),
	})
}

// teardown clears persisted credentials first, then the in-memory state and
// background tasks. Safe to call repeatedly.
func (m *Manager) teardown(ctx context.Context) {
	m.store.Remove(ctx, credstore.KeyToken)
	m.store.Remove(ctx, credstore.KeyTokenExpiresAt)
	m.store.Remove(ctx, credstore.KeyIdentity)
	m.store.Remove(ctx, credstore.KeyPendingEmail)

	m.mu.Lock()
	m.identity = nil
	m.tokenExpiresAt = time.Time{}
	m.pendingEmail = ""
	m.stopBackgroundLocked()
	m.mu.Unlock()
}

func (m *Manager) persistIdentity(ctx context.Context, ident *domain.Identity) {
	raw, err := json.Marshal(ident)
	if err != nil {
		m.logger.Error("identity serialization failed", zap.Error(err))
		return
	}
	m.store.Set(ctx, credstore.KeyIdentity, string(raw))
}

func (m *Manager) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
}

// identityFromPayload runs the strict ingestion step: roles outside the
// closed set are discarded and the active role is resolved by priority.
func identityFromPayload(user gateway.UserPayload) *domain.Identity {
	roles := domain.ParseRoles(user.Roles)
	ident := &domain.Identity{
		ID:              user.ID.String(),
		Name:            user.Name,
		Email:           user.Email,
		Roles:           roles,
		CurrentRole:     domain.ActiveRole(roles),
		EmailVerifiedAt: user.EmailVerifiedAt,
		CreatedAt:       user.CreatedAt,
		UpdatedAt:       user.UpdatedAt,
	}
	if user.OrganizerDetails != nil {
		details := *user.OrganizerDetails
		ident.OrganizerDetails = &details
	}
	return ident
}

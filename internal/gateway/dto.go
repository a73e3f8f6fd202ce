package gateway

import (
	"encoding/json"

	"github.com/spec-kit/marketplace-client/internal/domain"
)

// envelope is the backend's standard response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// FlexString accepts both JSON strings and numbers; the backend is not
// consistent about identifier types.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// UserPayload is the backend's user representation.
type UserPayload struct {
	ID               FlexString               `json:"id"`
	Name             string                   `json:"name"`
	Email            string                   `json:"email"`
	Roles            []string                 `json:"roles"`
	EmailVerifiedAt  string                   `json:"emailVerifiedAt"`
	CreatedAt        string                   `json:"createdAt"`
	UpdatedAt        string                   `json:"updatedAt"`
	OrganizerDetails *domain.OrganizerDetails `json:"organizerDetails"`
}

// loginData is the payload of successful login responses.
type loginData struct {
	AccessToken      string       `json:"accessToken"`
	ExpiresInMinutes int          `json:"expiresInMinutes"`
	User             *UserPayload `json:"user"`
}

// verifyData is the payload of successful OTP verification responses; the
// backend uses accessToken or token depending on the endpoint version.
type verifyData struct {
	AccessToken      string       `json:"accessToken"`
	Token            string       `json:"token"`
	ExpiresInMinutes int          `json:"expiresInMinutes"`
	User             *UserPayload `json:"user"`
}

// registerData is the payload of successful registration responses.
type registerData struct {
	User struct {
		Email string `json:"email"`
	} `json:"user"`
	OTPCodeForTesting string `json:"otpCodeForTesting"`
}

// meData is the payload of who-am-I responses.
type meData struct {
	User *UserPayload `json:"user"`
}

// LoginResult carries everything a session needs after authentication.
type LoginResult struct {
	Token            string
	ExpiresInMinutes int
	User             UserPayload
}

// RegisterRequest is the registration form payload.
type RegisterRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
	TNCAccepted          bool   `json:"tncAccepted"`
}

// RegisterResult reports the email awaiting OTP verification. OTPCode is
// only populated by test backends.
type RegisterResult struct {
	Email   string
	OTPCode string
}

// String returns the underlying string value.
func (f FlexString) String() string {
	return string(f)
}

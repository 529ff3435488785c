package models

import "time"

// Role is the application role stored on a user profile.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleBuyer  Role = "buyer"
	RoleAdmin  Role = "admin"
)

// User is the authenticated identity behind a Session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the server-issued proof of an authenticated identity.
// A Session always carries its User.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is past its expiry at now,
// allowing for leeway. A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time, leeway time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(s.ExpiresAt)
}

// UserProfile is the application record in the users table keyed by User.ID.
type UserProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      Role      `json:"role"`
	Phone     *string   `json:"phone"`
	Location  *string   `json:"location"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Credentials are the inputs of a password sign-in.
type Credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// ProfileInput is the application data written to the users table.
type ProfileInput struct {
	Username string `validate:"required,min=3,max=80"`
	Role     Role   `validate:"required,oneof=farmer buyer"`
	Phone    string `validate:"omitempty,max=20"`
	Location string `validate:"omitempty,max=100"`
}

// RegisterInput is everything needed to create an identity and its profile.
type RegisterInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	ProfileInput
}

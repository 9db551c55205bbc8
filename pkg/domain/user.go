package domain

import "strings"

// Role is the authorization role attached to a user.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is the authenticated shopper as returned by the users endpoints.
type User struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	Address        string `json:"address,omitempty"`
}

func (u *User) Validate() error {
	if u == nil {
		return invalidf("user is missing")
	}
	if strings.TrimSpace(u.ID) == "" {
		return invalidf("user id is empty")
	}
	if strings.TrimSpace(u.Email) == "" {
		return invalidf("user %s has no email", u.ID)
	}
	return nil
}

// Clone returns a copy that shares no memory with u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// DisplayName is the username, falling back to the local part of the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

// AuthResponse is the body returned by sign-in, sign-up and token refresh.
// Refresh responses carry no user.
type AuthResponse struct {
	AccessToken string `json:"accessToken"`
	User        *User  `json:"user,omitempty"`
}

func (r *AuthResponse) Validate() error {
	if strings.TrimSpace(r.AccessToken) == "" {
		return invalidf("access token is empty")
	}
	if r.User != nil {
		return r.User.Validate()
	}
	return nil
}

// SignInRequest exchanges credentials for an access token.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest creates an account.
type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest is the editable subset of the profile.
type UpdateProfileRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	Address        string `json:"address,omitempty"`
}

// ChangePasswordRequest rotates the password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r SignInRequest) Validate() error {
	if !strings.Contains(r.Email, "@") {
		return invalidf("email %q is not valid", r.Email)
	}
	if r.Password == "" {
		return invalidf("password is empty")
	}
	return nil
}

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 6

func (r SignUpRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return invalidf("username is empty")
	}
	if !strings.Contains(r.Email, "@") {
		return invalidf("email %q is not valid", r.Email)
	}
	if len(r.Password) < MinPasswordLength {
		return invalidf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

func (r UpdateProfileRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return invalidf("username is empty")
	}
	if !strings.Contains(r.Email, "@") {
		return invalidf("email %q is not valid", r.Email)
	}
	return nil
}

func (r ChangePasswordRequest) Validate() error {
	if r.CurrentPassword == "" {
		return invalidf("current password is empty")
	}
	if len(r.NewPassword) < MinPasswordLength {
		return invalidf("new password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

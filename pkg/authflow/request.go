package authflow

import (
	"regexp"
	"strings"

	"github.com/tendant/simple-auth/pkg/credential"
	"github.com/tendant/simple-auth/pkg/user"
)

const (
	minPasswordLength = 6
	maxPasswordLength = credential.MaxPasswordLength
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidationError describes one rejected request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validator struct {
	errs []ValidationError
}

func (v *validator) add(field, message string) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: message})
}

func (v *validator) email(field, value string) {
	if value == "" {
		v.add(field, "Email is required")
		return
	}
	if !emailRegex.MatchString(value) {
		v.add(field, "Invalid email address")
	}
}

func (v *validator) minLen(field, value string, n int, message string) {
	if len(value) < n {
		v.add(field, message)
	}
}

// maxLen counts bytes, not runes
func (v *validator) maxLen(field, value string, n int, message string) {
	if len(value) > n {
		v.add(field, message)
	}
}

// newPassword checks a password that is about to be hashed
func (v *validator) newPassword(field, value, minMessage string) {
	v.minLen(field, value, minPasswordLength, minMessage)
	v.maxLen(field, value, maxPasswordLength, "Maximum of 72 bytes allowed")
}

// normalizeEmail trims surrounding whitespace. Case is preserved: lookups
// are exact, matching the unique constraint in the store.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

type LoginRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Code        *string `json:"code,omitempty"`
	CallbackURL string  `json:"callbackUrl,omitempty"`
}

func (r LoginRequest) Validate() []ValidationError {
	var v validator
	v.email("email", r.Email)
	v.minLen("password", r.Password, 1, "Password is required")
	return v.errs
}

// code returns the submitted 2FA code, or "" when none was sent
func (r LoginRequest) code() string {
	if r.Code == nil {
		return ""
	}
	return strings.TrimSpace(*r.Code)
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (r RegisterRequest) Validate() []ValidationError {
	var v validator
	v.email("email", r.Email)
	v.newPassword("password", r.Password, "Minimum 6 characters required")
	v.minLen("name", strings.TrimSpace(r.Name), 1, "Name is required")
	return v.errs
}

type ResetRequest struct {
	Email string `json:"email"`
}

func (r ResetRequest) Validate() []ValidationError {
	var v validator
	v.email("email", r.Email)
	return v.errs
}

type NewPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r NewPasswordRequest) Validate() []ValidationError {
	var v validator
	v.newPassword("password", r.Password, "Minimum of 6 characters required")
	v.newPassword("confirmPassword", r.ConfirmPassword, "Minimum of 6 characters required")
	if r.Password != r.ConfirmPassword {
		v.add("confirmPassword", "Passwords do not match")
	}
	return v.errs
}

// SettingsRequest carries optional changes. Nil fields keep the stored value.
type SettingsRequest struct {
	Name             *string    `json:"name,omitempty"`
	Email            *string    `json:"email,omitempty"`
	Password         *string    `json:"password,omitempty"`
	NewPassword      *string    `json:"newPassword,omitempty"`
	Role             *user.Role `json:"role,omitempty"`
	TwoFactorEnabled *bool      `json:"isTwoFactorEnabled,omitempty"`
}

func (r SettingsRequest) Validate() []ValidationError {
	var v validator
	if r.Email != nil {
		v.email("email", *r.Email)
	}
	if r.Role != nil && !r.Role.Valid() {
		v.add("role", "Role must be ADMIN or USER")
	}
	if r.NewPassword != nil {
		v.newPassword("newPassword", *r.NewPassword, "Minimum of 6 characters required")
	}
	if nonEmpty(r.Password) && !nonEmpty(r.NewPassword) {
		v.add("newPassword", "New password is required!")
	}
	if nonEmpty(r.NewPassword) && !nonEmpty(r.Password) {
		v.add("password", "Password is required!")
	}
	return v.errs
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

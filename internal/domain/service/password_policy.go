package service

// PasswordPolicy checks new passwords before they reach the identity provider.
type PasswordPolicy interface {
	// ValidatePasswordStrength returns a validation error describing the
	// first rule the password breaks.
	ValidatePasswordStrength(password string) error
}

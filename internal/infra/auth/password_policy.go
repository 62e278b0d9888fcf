package auth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"archer/config"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/domain/service"
)

const (
	defaultMinPasswordLength = 8
	defaultMaxPasswordLength = 128
)

//nolint:gochecknoglobals
var forbiddenPasswordWords = []string{"password", "admin", "archer", "qwerty", "123456"}

// passwordPolicy checks new passwords against passwordStrength settings.
type passwordPolicy struct {
	cfg config.PasswordStrengthConfig
}

// NewPasswordPolicy builds the policy; a missing section enables every rule
// with the default lengths.
func NewPasswordPolicy(cfg *config.Config) service.PasswordPolicy {
	strength := config.PasswordStrengthConfig{
		MinLength:        defaultMinPasswordLength,
		MaxLength:        defaultMaxPasswordLength,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumbers:   true,
		RequireSpecial:   true,
	}
	if cfg.PasswordStrength != nil {
		strength = *cfg.PasswordStrength
		if strength.MinLength <= 0 {
			strength.MinLength = defaultMinPasswordLength
		}
		if strength.MaxLength <= 0 {
			strength.MaxLength = defaultMaxPasswordLength
		}
	}

	return &passwordPolicy{cfg: strength}
}

// ValidatePasswordStrength reports the first rule the password breaks.
func (p *passwordPolicy) ValidatePasswordStrength(password string) error {
	length := utf8.RuneCountInString(password)

	switch {
	case length < p.cfg.MinLength:
		return weak(fmt.Sprintf("must be at least %d characters long", p.cfg.MinLength))
	case length > p.cfg.MaxLength:
		return weak(fmt.Sprintf("must be at most %d characters long", p.cfg.MaxLength))
	case p.cfg.RequireLowercase && !hasLowercase(password):
		return weak("must contain at least one lowercase letter")
	case p.cfg.RequireUppercase && !hasUppercase(password):
		return weak("must contain at least one uppercase letter")
	case p.cfg.RequireNumbers && !hasNumbers(password):
		return weak("must contain at least one number")
	case p.cfg.RequireSpecial && !hasSpecialChars(password):
		return weak("must contain at least one special character")
	case containsForbiddenWords(password, forbiddenPasswordWords):
		return weak("contains forbidden words")
	}

	return nil
}

func weak(details string) error {
	return domainerrors.ErrPasswordStrength.WithDetails("password " + details)
}

func hasUppercase(s string) bool {
	return strings.IndexFunc(s, unicode.IsUpper) >= 0
}

func hasLowercase(s string) bool {
	return strings.IndexFunc(s, unicode.IsLower) >= 0
}

func hasNumbers(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func hasSpecialChars(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}) >= 0
}

func containsForbiddenWords(s string, words []string) bool {
	lower := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}

	return false
}

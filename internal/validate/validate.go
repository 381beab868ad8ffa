// Package validate checks user-supplied credentials before they reach a service.
package validate

import (
	"regexp"
	"strings"

	"github.com/and161185/account-keeper/internal/crypto"
	"github.com/and161185/account-keeper/internal/errs"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var (
	emailRe   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`\d`)
	specialRe = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

type rule struct {
	re  *regexp.Regexp
	msg string
}

var passwordRules = []rule{
	{upperRe, "Password must contain at least one uppercase letter"},
	{lowerRe, "Password must contain at least one lowercase letter"},
	{digitRe, "Password must contain at least one number"},
	{specialRe, "Password must contain at least one special character"},
}

// NormalizeEmail trims and lower-cases an address. Stored emails are always normalized.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Email normalizes email and checks its format.
func Email(email string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", errs.New(errs.KindInvalidEmail, "Email is required").WithDetail("field", "email")
	}
	if !emailRe.MatchString(email) {
		return "", errs.New(errs.KindInvalidEmail, "Invalid email format").WithDetail("field", "email")
	}
	return email, nil
}

// Password checks the complexity rules. The message names the first violated rule;
// details list all of them.
func Password(password string) error {
	var violations []string
	if len(password) < MinPasswordLength {
		violations = append(violations, "Password must be at least 8 characters long")
	}
	if len(password) > crypto.MaxPasswordBytes {
		violations = append(violations, "Password must be at most 72 bytes long")
	}
	for _, r := range passwordRules {
		if !r.re.MatchString(password) {
			violations = append(violations, r.msg)
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return errs.New(errs.KindWeakPassword, violations[0]).WithDetails(map[string]any{
		"field":      "password",
		"violations": violations,
	})
}

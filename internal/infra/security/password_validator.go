package security

import (
	"fmt"
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/arklim/storefront-account-security/internal/core/domain"
)

// Minimum length of a personal-data fragment worth checking for.
const personalFragmentMinLength = 3

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) error

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator applies a sequence of password rules.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// PolicyValidator builds a validator enforcing every rule the security policy
// enables, checked against the account holder's personal data.
func PolicyValidator(policy domain.SecurityPolicy, person domain.PersonalData) *PasswordValidator {
	rules := make([]PasswordRule, 0, 6)

	if policy.MinLength > 0 {
		rules = append(rules, MinLengthRule(policy.MinLength))
	}
	if policy.RequireUpperLower {
		rules = append(rules, RequireUpperLowerRule())
	}
	if policy.RequireDigit {
		rules = append(rules, RequireDigitRule())
	}
	if policy.RequireSpecial {
		rules = append(rules, RequireSpecialRule())
	}
	if policy.ForbidPersonalData {
		rules = append(rules, ForbidPersonalDataRule(person))
	}
	if policy.MinStrengthScore > 0 {
		rules = append(rules, RequireStrengthRule(policy.MinStrengthScore, personalInputs(person)...))
	}

	return NewPasswordValidator(rules...)
}

// Validate executes all rules and returns the first encountered violation.
func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if len([]rune(password)) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// RequireUpperLowerRule ensures the password mixes upper and lower case letters.
func RequireUpperLowerRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		var hasUpper, hasLower bool
		for _, r := range password {
			switch {
			case unicode.IsUpper(r):
				hasUpper = true
			case unicode.IsLower(r):
				hasLower = true
			}
		}
		if hasUpper && hasLower {
			return nil
		}
		return &PasswordValidationError{
			Code:    "case_mix",
			Message: "password must include both upper and lower case letters",
		}
	})
}

// RequireDigitRule ensures the password contains at least one digit.
func RequireDigitRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsDigit(r) {
				return nil
			}
		}
		return &PasswordValidationError{
			Code:    "digit",
			Message: "password must include at least one digit",
		}
	})
}

// RequireSpecialRule ensures the password contains at least one character that
// is neither a letter nor a digit.
func RequireSpecialRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				return nil
			}
		}
		return &PasswordValidationError{
			Code:    "special",
			Message: "password must include at least one special character",
		}
	})
}

// ForbidPersonalDataRule rejects passwords containing the account holder's
// first name, last name, or birth date (YYYYMMDD) as a case-insensitive
// substring. Fragments shorter than three characters are ignored.
func ForbidPersonalDataRule(person domain.PersonalData) PasswordRule {
	fragments := make([]string, 0, 3)
	if trimmed := strings.TrimSpace(person.FirstName); trimmed != "" {
		fragments = append(fragments, trimmed)
	}
	if trimmed := strings.TrimSpace(person.LastName); trimmed != "" {
		fragments = append(fragments, trimmed)
	}
	if person.BirthDate != nil {
		fragments = append(fragments, person.BirthDate.Format("20060102"))
	}

	return PasswordRuleFunc(func(password string) error {
		lowered := strings.ToLower(password)
		for _, fragment := range fragments {
			if len(fragment) < personalFragmentMinLength {
				continue
			}
			if strings.Contains(lowered, strings.ToLower(fragment)) {
				return &PasswordValidationError{
					Code:    "personal_data",
					Message: "password must not contain personal data",
				}
			}
		}
		return nil
	})
}

// RequireStrengthRule enforces a minimum zxcvbn score to reject guessable passwords.
func RequireStrengthRule(minScore int, userInputs ...string) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if minScore <= 0 {
			return nil
		}
		if minScore > 4 {
			minScore = 4
		}

		result := zxcvbn.PasswordStrength(password, userInputs)
		if result.Score >= minScore {
			return nil
		}

		return &PasswordValidationError{
			Code:    "weak_password",
			Message: "password is too weak; choose a more complex value",
		}
	})
}

func personalInputs(person domain.PersonalData) []string {
	inputs := make([]string, 0, 4)
	if trimmed := strings.TrimSpace(person.Username); trimmed != "" {
		inputs = append(inputs, trimmed)
	}
	if trimmed := strings.TrimSpace(person.FirstName); trimmed != "" {
		inputs = append(inputs, trimmed)
	}
	if trimmed := strings.TrimSpace(person.LastName); trimmed != "" {
		inputs = append(inputs, trimmed)
	}
	if person.BirthDate != nil {
		inputs = append(inputs, person.BirthDate.Format("20060102"))
	}
	return inputs
}

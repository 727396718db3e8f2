package authsvc

import (
	"regexp"
	"strconv"
	"unicode/utf16"

	"github.com/go-playground/validator"

	"github.com/mkrupp/lostbuddy/internal/domain"
)

// emailPart is a run of anything but "@" and the characters domain.IsSpace
// accepts. RE2's \s alone leaves out \v and the Unicode separators.
const emailPart = `[^\s\v\p{Z}\x{FEFF}@]+`

//nolint:gochecknoglobals
var (
	// basicEmailPattern accepts anything shaped like local@domain.tld.
	basicEmailPattern = regexp.MustCompile(`^` + emailPart + `@` + emailPart + `\.` + emailPart + `$`)
	mobilePattern     = regexp.MustCompile(`^[0-9]{10}$`)
)

// Validator checks registration fields in a fixed order and reports the
// first failure as a domain validation error.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the basic_email, mobile and
// utf16min rules registered.
func NewValidator() *Validator {
	validate := validator.New()

	for tag, pattern := range map[string]*regexp.Regexp{
		"basic_email": basicEmailPattern,
		"mobile":      mobilePattern,
	} {
		if err := validate.RegisterValidation(tag, matches(pattern)); err != nil {
			panic(err)
		}
	}

	if err := validate.RegisterValidation("utf16min", utf16Min); err != nil {
		panic(err)
	}

	return &Validator{validate: validate}
}

// utf16Min checks the length of a string in UTF-16 code units, the way
// browser forms count characters. The parameter is the minimum.
func utf16Min(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		panic(err)
	}

	return len(utf16.Encode([]rune(fl.Field().String()))) >= limit
}

func matches(pattern *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	}
}

// ValidateRegistration checks a normalized request.
func (v *Validator) ValidateRegistration(req domain.RegisterRequest) error {
	checks := []struct {
		value string
		tag   string
		err   error
	}{
		{req.Name, "required", domain.ErrInvalidName},
		{req.Mobile, "mobile", domain.ErrInvalidMobile},
		{req.Email, "required,basic_email", domain.ErrInvalidEmail},
		{req.Password, "utf16min=6", domain.ErrPasswordTooShort},
	}

	for _, check := range checks {
		if err := v.validate.Var(check.value, check.tag); err != nil {
			return check.err
		}
	}

	if err := v.validate.VarWithValue(req.Password, req.ConfirmPassword, "eqfield"); err != nil {
		return domain.ErrPasswordMismatch
	}

	return nil
}

// ValidateCredentials checks a normalized login identifier and password.
func (v *Validator) ValidateCredentials(identifier, password string) error {
	if v.validate.Var(identifier, "required") != nil || v.validate.Var(password, "required") != nil {
		return domain.ErrMissingCredentials
	}

	return nil
}

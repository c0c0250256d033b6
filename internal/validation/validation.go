// Package validation checks user-entered form fields before anything is sent
// to the backend. Every check is pure and synchronous.
//
// Rules run in a fixed order so the reported error is reproducible:
// required fields (in form order), email shape, age range, password length,
// password confirmation. The first violation is returned.
package validation

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/useraccounts/internal/common"
)

type Rule string

const (
	RuleRequired       Rule = "required"
	RuleEmail          Rule = "email"
	RuleAge            Rule = "age"
	RulePasswordLength Rule = "password-length"
	RulePasswordMatch  Rule = "password-match"
)

// Field keys, as used by the forms.
const (
	FieldName            = "nombre"
	FieldEmail           = "correo"
	FieldAge             = "edad"
	FieldSpecialty       = "especialidad"
	FieldPassword        = "contraseña"
	FieldConfirmPassword = "confirmarContraseña"
	FieldNewPassword     = "contraseñaNueva"
)

const (
	MinAge = 18
	MaxAge = 100
)

var (
	ErrRequired         = errors.New("required field is empty")
	ErrInvalidEmail     = errors.New("malformed email")
	ErrAgeOutOfRange    = errors.New("age out of range")
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

var ruleErrors = map[Rule]error{
	RuleRequired:       ErrRequired,
	RuleEmail:          ErrInvalidEmail,
	RuleAge:            ErrAgeOutOfRange,
	RulePasswordLength: ErrPasswordTooShort,
	RulePasswordMatch:  ErrPasswordMismatch,
}

// Error is the first rule a form violated. Message is ready to show.
type Error struct {
	Rule    Rule
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return ruleErrors[e.Rule] }

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var requiredMessages = map[string]string{
	FieldName:            "El nombre es obligatorio",
	FieldEmail:           "El correo electrónico es obligatorio",
	FieldAge:             "La edad es obligatoria",
	FieldSpecialty:       "La especialidad es obligatoria",
	FieldPassword:        "La contraseña es obligatoria",
	FieldConfirmPassword: "Confirma tu contraseña",
}

// LoginForm is the sign-in field bag.
type LoginForm struct {
	Email    string
	Password string
}

// RegistrationForm is the sign-up field bag. Age is kept as typed.
type RegistrationForm struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	Age             string
	Specialty       string
}

// ProfileForm is the edit-profile field bag. NewPassword is optional; when
// empty the credential is left alone.
type ProfileForm struct {
	Name            string
	Email           string
	Age             string
	Specialty       string
	NewPassword     string
	ConfirmPassword string
}

type field struct {
	key   string
	value string
}

func required(fields ...field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &Error{Rule: RuleRequired, Field: f.key, Message: requiredMessages[f.key]}
		}
	}
	return nil
}

// Email checks the address shape only.
func Email(email string) error {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return &Error{Rule: RuleEmail, Field: FieldEmail, Message: "Por favor ingresa un correo electrónico válido"}
	}
	return nil
}

// ParseAge returns the age typed in s, or a RuleAge error when it is not a
// whole number in [MinAge, MaxAge].
func ParseAge(s string) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || age < MinAge || age > MaxAge {
		return 0, &Error{Rule: RuleAge, Field: FieldAge, Message: "Por favor ingresa una edad válida (18-100 años)"}
	}
	return age, nil
}

func passwordLength(key, password, message string) error {
	if utf8.RuneCountInString(password) < common.MinPasswordLength {
		return &Error{Rule: RulePasswordLength, Field: key, Message: message}
	}
	return nil
}

func passwordMatch(password, confirm string) error {
	if password != confirm {
		return &Error{Rule: RulePasswordMatch, Field: FieldConfirmPassword, Message: "Las contraseñas no coinciden"}
	}
	return nil
}

// Login validates the sign-in form. The password length is not checked here;
// a short password simply fails to match.
func Login(f LoginForm) error {
	if err := required(field{FieldEmail, f.Email}, field{FieldPassword, f.Password}); err != nil {
		return err
	}
	return Email(f.Email)
}

// Registration validates the sign-up form.
func Registration(f RegistrationForm) error {
	err := required(
		field{FieldName, f.Name},
		field{FieldEmail, f.Email},
		field{FieldAge, f.Age},
		field{FieldSpecialty, f.Specialty},
		field{FieldPassword, f.Password},
		field{FieldConfirmPassword, f.ConfirmPassword},
	)
	if err != nil {
		return err
	}
	if err := Email(f.Email); err != nil {
		return err
	}
	if _, err := ParseAge(f.Age); err != nil {
		return err
	}
	if err := passwordLength(FieldPassword, f.Password, "La contraseña debe tener al menos 6 caracteres"); err != nil {
		return err
	}
	return passwordMatch(f.Password, f.ConfirmPassword)
}

// Profile validates the edit-profile form.
func Profile(f ProfileForm) error {
	err := required(
		field{FieldName, f.Name},
		field{FieldEmail, f.Email},
		field{FieldAge, f.Age},
		field{FieldSpecialty, f.Specialty},
	)
	if err != nil {
		return err
	}
	if err := Email(f.Email); err != nil {
		return err
	}
	if _, err := ParseAge(f.Age); err != nil {
		return err
	}
	if f.NewPassword == "" && f.ConfirmPassword == "" {
		return nil
	}
	if err := passwordLength(FieldNewPassword, f.NewPassword, "La nueva contraseña debe tener al menos 6 caracteres"); err != nil {
		return err
	}
	return passwordMatch(f.NewPassword, f.ConfirmPassword)
}

package client

import (
	"regexp"
	"strings"
	"unicode"
)

const maxImageSize = 2 << 20

var emailPattern = regexp.MustCompile(`.+@.+\..+`)

// FormError es un error de validacion local, previo a llamar al backend.
// No se guarda en State.Error, que queda reservado a errores del servidor.
type FormError struct {
	Field   string
	Message string
}

func (e *FormError) Error() string { return e.Message }

func ValidateLogin(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return &FormError{Field: "email", Message: "Please enter both email and password."}
	}
	return nil
}

func ValidateOTP(email, code string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(code) == "" {
		return &FormError{Field: "otp", Message: "Please enter both email and OTP."}
	}
	code = strings.TrimSpace(code)
	if len(code) != 6 || strings.IndexFunc(code, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return &FormError{Field: "otp", Message: "OTP must be a 6-digit number."}
	}
	return nil
}

func ValidateRegistration(req RegisterRequest) error {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return &FormError{Field: "name", Message: "Please fill in all required fields (Name, Email, Password)."}
	}
	if !emailPattern.MatchString(req.Email) {
		return &FormError{Field: "email", Message: "Please enter a valid email address."}
	}
	if !strongPassword(req.Password) {
		return &FormError{
			Field:   "password",
			Message: "Password must be at least 6 characters long and contain at least one digit, one lowercase, and one uppercase letter.",
		}
	}
	if req.Age != nil && *req.Age < 0 {
		return &FormError{Field: "age", Message: "Age must be a non-negative number."}
	}
	if img := req.Image; img != nil {
		if img.ContentType != "image/jpeg" && img.ContentType != "image/png" {
			return &FormError{Field: "profileImage", Message: "Only PNG and JPG/JPEG image formats are allowed."}
		}
		if img.Size > maxImageSize {
			return &FormError{Field: "profileImage", Message: "Profile image size cannot exceed 2MB."}
		}
	}
	return nil
}

func strongPassword(pw string) bool {
	if len(pw) < 6 {
		return false
	}
	var digit, lower, upper bool
	for _, r := range pw {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		}
	}
	return digit && lower && upper
}

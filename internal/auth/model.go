package auth

import (
	"fmt"
	"regexp"
	"strings"

	appErrors "github.com/fatali-fataliyev/migasto/errors"
)

const (
	MAX_LENGTH_NAME     = 255
	MAX_LENGTH_EMAIL    = 255
	MAX_PASSWORD_LENGTH = 72 // bcrypt ignores anything past 72 bytes
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9](\.?[a-zA-Z0-9_%+-])*@[a-zA-Z0-9-]+(\.[a-zA-Z0-9-]+)*\.[a-zA-Z]{2,}$`)

type User struct {
	ID             int64
	Name           string
	Email          string
	PasswordHashed string
}

// PublicUser is a User without its password hash.
type PublicUser struct {
	ID    int64
	Name  string
	Email string
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}

type NewUser struct {
	Name          string
	Email         string
	PasswordPlain string
}

type UserCredentialsPure struct {
	Email         string
	PasswordPlain string
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (newUser NewUser) ValidateUserFields() error {
	if strings.TrimSpace(newUser.Name) == "" || strings.TrimSpace(newUser.Email) == "" || newUser.PasswordPlain == "" {
		return appErrors.New(appErrors.ErrInvalidInput, "nombre, email y password son obligatorios")
	}
	if len(newUser.Name) > MAX_LENGTH_NAME {
		return appErrors.New(appErrors.ErrInvalidInput, fmt.Sprintf("nombre excede el máximo de %d caracteres", MAX_LENGTH_NAME))
	}
	if len(newUser.Email) > MAX_LENGTH_EMAIL {
		return appErrors.New(appErrors.ErrInvalidInput, fmt.Sprintf("email excede el máximo de %d caracteres", MAX_LENGTH_EMAIL))
	}
	if !emailRegex.MatchString(strings.TrimSpace(newUser.Email)) {
		return appErrors.New(appErrors.ErrInvalidInput, "formato de email inválido, ejemplo válido: juan.perez@gmail.com")
	}
	if len(newUser.PasswordPlain) > MAX_PASSWORD_LENGTH {
		return appErrors.New(appErrors.ErrInvalidInput, fmt.Sprintf("password excede el máximo de %d caracteres", MAX_PASSWORD_LENGTH))
	}
	return nil
}

func (c UserCredentialsPure) Validate() error {
	if strings.TrimSpace(c.Email) == "" || c.PasswordPlain == "" {
		return appErrors.New(appErrors.ErrInvalidInput, "email y password son obligatorios")
	}
	return nil
}

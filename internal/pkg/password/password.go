package password

import (
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	appErr "github.com/xxxsen/estate/internal/pkg/errors"
)

const (
	MinLength = 6
	// bcrypt ignores everything past 72 bytes.
	MaxLength = 72
)

func Validate(plain string) error {
	n := utf8.RuneCountInString(plain)
	if n < MinLength || len(plain) > MaxLength {
		return appErr.ErrInvalid
	}
	return nil
}

func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func Compare(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned by Hash when the password exceeds MaxPasswordBytes.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashed, plain string) (bool, error)
}

// NewPasswordHasher returns the hasher named by algorithm ("bcrypt" or "argon2id").
// Verification always follows the scheme encoded in the stored hash.
func NewPasswordHasher(algorithm string, bcryptCost int) (PasswordHasher, error) {
	switch algorithm {
	case "", "bcrypt":
		return &multiHasher{primary: bcryptHasher{cost: bcryptCost}}, nil
	case "argon2id":
		return &multiHasher{primary: argonHasher{params: argon2id.DefaultParams}}, nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", algorithm)
	}
}

type multiHasher struct {
	primary PasswordHasher
}

func (h *multiHasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

func (h *multiHasher) Verify(hashed, plain string) (bool, error) {
	if strings.HasPrefix(hashed, "$argon2id$") {
		return argonHasher{}.Verify(hashed, plain)
	}
	return bcryptHasher{}.Verify(hashed, plain)
}

type bcryptHasher struct {
	cost int
}

// Hash hashes a plaintext password with configured cost.
func (b bcryptHasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	cost := b.cost
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify compares a password against its hashed value.
func (bcryptHasher) Verify(hashed, plain string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

type argonHasher struct {
	params *argon2id.Params
}

func (a argonHasher) Hash(password string) (string, error) {
	return argon2id.CreateHash(password, a.params)
}

func (argonHasher) Verify(hashed, plain string) (bool, error) {
	return argon2id.ComparePasswordAndHash(plain, hashed)
}

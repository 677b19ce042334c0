// Package auth holds the reviewer accounts of the fixture review
// application, its browser sessions and its API bearer tokens.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	stdtime "time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
)

// Errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Argon2id parameters (OWASP second recommendation: m=19456, t=2, p=1).
// Parameters are embedded in each hash string.
const (
	argon2Time    = 2
	argon2Memory  = 19 * 1024
	argon2Threads = 1
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// Portal is the reviewer portal an account signs in to.
type Portal string

const (
	// PortalTranslation reviews translated documents and scores them.
	PortalTranslation Portal = "translation"
	// PortalEnglish reviews English source documents without scores.
	PortalEnglish Portal = "english"
)

// Scored reports whether the portal shows per-dimension scores.
func (p Portal) Scored() bool { return p == PortalTranslation }

// Clock abstracts time for testability.
type Clock interface {
	Now() stdtime.Time
}

type realClock struct{}

func (realClock) Now() stdtime.Time { return stdtime.Now() }

// User is a reviewer account.
type User struct {
	ID           string
	Email        string
	Portal       Portal
	PasswordHash string
	CreatedAt    stdtime.Time
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, encodedHash string) bool
}

// Argon2Hasher is the production PasswordHasher.
type Argon2Hasher struct{}

func (Argon2Hasher) HashPassword(password string) (string, error) { return HashPassword(password) }

func (Argon2Hasher) VerifyPassword(password, encodedHash string) bool {
	return VerifyPassword(password, encodedHash)
}

// Users is the in-memory account directory.
type Users struct {
	mu      sync.RWMutex
	byEmail map[string]*User
	byID    map[string]*User
	hasher  PasswordHasher
	clock   Clock
}

// NewUsers returns an empty directory. A nil hasher uses Argon2Hasher.
func NewUsers(hasher PasswordHasher) *Users {
	if hasher == nil {
		hasher = Argon2Hasher{}
	}
	return &Users{
		byEmail: make(map[string]*User),
		byID:    make(map[string]*User),
		hasher:  hasher,
		clock:   realClock{},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Add registers an account.
func (u *Users) Add(email, password string, portal Portal) (User, error) {
	if err := ValidatePasswordStrength(password); err != nil {
		return User{}, err
	}
	key := normalizeEmail(email)
	hash, err := u.hasher.HashPassword(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if _, exists := u.byEmail[key]; exists {
		return User{}, ErrAccountExists
	}
	user := &User{
		ID:           uuid.NewString(),
		Email:        key,
		Portal:       portal,
		PasswordHash: hash,
		CreatedAt:    u.clock.Now(),
	}
	u.byEmail[key] = user
	u.byID[user.ID] = user
	return *user, nil
}

// Authenticate checks email and password.
func (u *Users) Authenticate(email, password string) (User, error) {
	u.mu.RLock()
	user, ok := u.byEmail[normalizeEmail(email)]
	u.mu.RUnlock()
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if !u.hasher.VerifyPassword(password, user.PasswordHash) {
		return User{}, ErrInvalidCredentials
	}
	return *user, nil
}

// ByID returns the account with id.
func (u *Users) ByID(id string) (User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return *user, nil
}

// ValidatePasswordStrength checks if a password meets minimum requirements.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword hashes a password using Argon2id.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// Encode as: $argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argon2Memory, argon2Time, argon2Threads, encodedSalt, encodedHash), nil
}

// VerifyPassword checks if a password matches a hash.
func VerifyPassword(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return false
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}

	saltBytes, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	hashBytes, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	hashLen := len(hashBytes)
	if hashLen <= 0 || hashLen > argon2KeyLen*2 {
		return false
	}

	computed := argon2.IDKey([]byte(password), saltBytes, time, memory, threads, uint32(hashLen))
	return subtle.ConstantTimeCompare(hashBytes, computed) == 1
}

package password

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/go-authgate/usergate/internal/util"
)

var (
	// ErrUnknownScheme is returned when a hash scheme is not registered
	ErrUnknownScheme = errors.New("password: unknown hash scheme")

	// ErrNoSchemes is returned when a Manager is built without schemes
	ErrNoSchemes = errors.New("password: at least one hash scheme is required")

	// ErrTooShort is returned when a password is shorter than the minimum length
	ErrTooShort = errors.New("password: too short")

	// ErrMalformedHash is returned when a stored hash cannot be parsed
	ErrMalformedHash = errors.New("password: malformed hash")
)

// Hasher hashes and verifies passwords with one scheme
type Hasher interface {
	// Name returns the scheme name ("argon2id", "bcrypt")
	Name() string
	// Identify reports whether the encoded hash was produced by this scheme
	Identify(encoded string) bool
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	// NeedsUpdate reports whether the hash was made with weaker parameters
	NeedsUpdate(encoded string) bool
}

// Manager hashes with the first configured scheme and verifies with all of them.
// Hashes produced by any other scheme are reported as needing an update.
type Manager struct {
	hashers   []Hasher
	minLength int
	dummyHash string
}

// NewManager creates a password manager from an ordered list of scheme names
func NewManager(schemes []string, minLength int) (*Manager, error) {
	if len(schemes) == 0 {
		return nil, ErrNoSchemes
	}

	hashers := make([]Hasher, 0, len(schemes))
	for _, scheme := range schemes {
		switch strings.ToLower(scheme) {
		case "argon2id":
			hashers = append(hashers, NewArgon2id(DefaultArgon2Params))
		case "bcrypt":
			hashers = append(hashers, NewBcrypt(DefaultBcryptCost))
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownScheme, scheme)
		}
	}

	return newManager(hashers, minLength)
}

func newManager(hashers []Hasher, minLength int) (*Manager, error) {
	m := &Manager{hashers: hashers, minLength: minLength}

	// Hash used when the user does not exist, so lookups take as long as real checks
	dummy, err := hashers[0].Hash("usergate-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("failed to create dummy hash: %w", err)
	}
	m.dummyHash = dummy
	return m, nil
}

// Validate checks password policy
func (m *Manager) Validate(password string) error {
	if len(password) < m.minLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrTooShort, m.minLength)
	}
	return nil
}

// Hash hashes a password with the primary scheme
func (m *Manager) Hash(password string) (string, error) {
	return m.hashers[0].Hash(password)
}

// Verify reports whether the password matches the encoded hash
func (m *Manager) Verify(password, encoded string) bool {
	ok, _ := m.VerifyAndUpdate(password, encoded)
	return ok
}

// VerifyAndUpdate verifies a password and, when it matches but the stored hash uses a
// deprecated scheme or weaker parameters, returns a fresh hash to persist.
// An empty encoded hash is verified against a dummy hash and never matches.
func (m *Manager) VerifyAndUpdate(password, encoded string) (bool, string) {
	if encoded == "" {
		m.DummyVerify(password)
		return false, ""
	}

	for i, h := range m.hashers {
		if !h.Identify(encoded) {
			continue
		}
		ok, err := h.Verify(password, encoded)
		if err != nil || !ok {
			return false, ""
		}
		if i == 0 && !h.NeedsUpdate(encoded) {
			return true, ""
		}
		newHash, err := m.Hash(password)
		if err != nil {
			// keep the old hash; the password still matched
			return true, ""
		}
		return true, newHash
	}

	m.DummyVerify(password)
	return false, ""
}

// DummyVerify spends the same time as a real verification
func (m *Manager) DummyVerify(password string) {
	_, _ = m.hashers[0].Verify(password, m.dummyHash)
}

// Generate returns a random password suitable for accounts created through OAuth2
func (m *Manager) Generate() (string, error) {
	buf, err := util.CryptoRandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Scheme returns the name of the primary scheme
func (m *Manager) Scheme() string {
	return m.hashers[0].Name()
}

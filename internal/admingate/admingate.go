// Package admingate protects administrative actions behind a numeric PIN.
// Only a one-way hash of the PIN is ever stored.
package admingate

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/kensar/kiosk/internal/store"
)

// ErrInvalidPin is returned when a candidate is not 4 to 8 decimal digits.
var ErrInvalidPin = errors.New("invalid PIN: use 4 to 8 digits")

var pinPattern = regexp.MustCompile(`^[0-9]{4,8}$`)

// Hash algorithms for newly stored PINs.
const (
	AlgSHA256   = "sha256"
	AlgArgon2id = "argon2id"
)

// Argon2id parameters.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16

	argonPrefix = "$argon2id$"
)

// Gate reads and writes the admin PIN hash through the config store.
type Gate struct {
	store *store.Store
	alg   string
}

// New returns a Gate that hashes new PINs with alg (AlgSHA256 when empty).
// Verification accepts hashes of either algorithm.
func New(s *store.Store, alg string) *Gate {
	if alg == "" {
		alg = AlgSHA256
	}
	return &Gate{store: s, alg: alg}
}

// ValidatePin trims the candidate and checks the 4-8 digit format.
func ValidatePin(candidate string) (string, error) {
	pin := strings.TrimSpace(candidate)
	if !pinPattern.MatchString(pin) {
		return "", ErrInvalidPin
	}
	return pin, nil
}

// HasPin reports whether a PIN hash is stored.
func (g *Gate) HasPin() bool {
	return g.store.Load().AdminPinHash() != ""
}

// SetPin validates candidate and stores its hash. An invalid candidate leaves
// the stored hash untouched.
func (g *Gate) SetPin(candidate string) error {
	pin, err := ValidatePin(candidate)
	if err != nil {
		return err
	}
	hash, err := g.hash(pin)
	if err != nil {
		return err
	}
	if _, err := g.store.Merge(store.Document{store.KeyAdminPinHash: hash}); err != nil {
		return fmt.Errorf("store admin pin: %w", err)
	}
	return nil
}

// VerifyPin reports whether candidate matches the stored hash. Badly formed
// candidates and a missing hash both verify false.
func (g *Gate) VerifyPin(candidate string) bool {
	pin, err := ValidatePin(candidate)
	if err != nil {
		return false
	}
	stored := g.store.Load().AdminPinHash()
	if stored == "" {
		return false
	}
	return matches(stored, pin)
}

func (g *Gate) hash(pin string) (string, error) {
	if g.alg == AlgArgon2id {
		return hashArgon2id(pin)
	}
	return HashSHA256(pin), nil
}

// HashSHA256 is the unsalted digest format: lowercase hex SHA-256 of the PIN.
func HashSHA256(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

func hashArgon2id(pin string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(pin), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func matches(stored, pin string) bool {
	if !strings.HasPrefix(stored, argonPrefix) {
		return subtle.ConstantTimeCompare([]byte(stored), []byte(HashSHA256(pin))) == 1
	}

	// $argon2id$v=19$m=65536,t=1,p=4$salt$key
	parts := strings.Split(stored, "$")
	if len(parts) != 6 {
		return false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}
	if time == 0 || threads == 0 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false
	}
	got := argon2.IDKey([]byte(pin), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

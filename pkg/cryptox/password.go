package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for newly minted hashes. Verification always uses the
// parameters encoded in the stored hash.
const (
	argonMemory      = 19 * 1024 // KiB
	argonIterations  = 2
	argonParallelism = 1
	argonKeyLength   = 32
	argonSaltLength  = 16
)

var (
	// ErrPasswordMismatch is returned when a password does not match its hash.
	ErrPasswordMismatch = errors.New("cryptox: password does not match")
	// ErrMalformedHash is returned when a stored hash is not a PHC argon2id string.
	ErrMalformedHash = errors.New("cryptox: malformed password hash")
)

// Hasher hashes and verifies peppered argon2id passwords.
type Hasher struct {
	pepper []byte

	dummyOnce sync.Once
	dummy     string
}

// NewHasher returns a Hasher that appends pepper to every password before
// hashing. The pepper must stay stable for stored hashes to verify.
func NewHasher(pepper string) *Hasher {
	return &Hasher{pepper: []byte(pepper)}
}

// Hash returns a PHC encoded argon2id hash of password with a fresh salt.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cryptox: read salt: %w", err)
	}

	sum := argon2.IDKey(h.peppered(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify checks password against a PHC encoded hash in constant time.
func (h *Hasher) Verify(password, encoded string) error {
	p, err := parsePHC(encoded)
	if err != nil {
		return err
	}

	sum := argon2.IDKey(h.peppered(password), p.salt, p.iterations, p.memory, p.parallelism, uint32(len(p.sum))) // #nosec G115
	if subtle.ConstantTimeCompare(sum, p.sum) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// VerifyDummy runs a full verification against a throwaway hash and always
// reports ErrPasswordMismatch. Callers use it for unknown accounts so the
// response time matches a wrong password.
func (h *Hasher) VerifyDummy(password string) error {
	h.dummyOnce.Do(func() {
		// Hash can only fail when the system RNG is broken.
		h.dummy, _ = h.Hash("tokend-dummy-password")
	})
	if h.dummy != "" {
		_ = h.Verify(password, h.dummy)
	}
	return ErrPasswordMismatch
}

func (h *Hasher) peppered(password string) []byte {
	out := make([]byte, 0, len(password)+len(h.pepper))
	out = append(out, password...)
	return append(out, h.pepper...)
}

type phcParams struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	sum         []byte
}

// parsePHC decodes $argon2id$v=19$m=X,t=Y,p=Z$salt$hash.
func parsePHC(encoded string) (phcParams, error) {
	var p phcParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, ErrMalformedHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return p, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, parts[2])
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return p, fmt.Errorf("%w: parameters: %v", ErrMalformedHash, err)
	}
	if p.memory == 0 || p.iterations == 0 || p.parallelism == 0 {
		return p, fmt.Errorf("%w: zero cost parameter", ErrMalformedHash)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	if p.sum, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return p, fmt.Errorf("%w: digest: %v", ErrMalformedHash, err)
	}
	if len(p.sum) == 0 {
		return p, fmt.Errorf("%w: empty digest", ErrMalformedHash)
	}
	return p, nil
}

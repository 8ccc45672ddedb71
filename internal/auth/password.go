package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrCorruptCredential is returned when a stored password hash cannot be parsed.
var ErrCorruptCredential = errors.New("corrupt credential")

// maxHashMemory bounds the memory cost accepted from a stored hash (KiB).
const maxHashMemory = 1 << 20

// maxHashIterations bounds the time cost accepted from a stored hash.
const maxHashIterations = 64

// PasswordHasher hashes and verifies admin passwords.
type PasswordHasher interface {
	// Hash returns a self-describing hash of password.
	Hash(password string) (string, error)

	// Verify reports whether password matches encoded. A mismatch is not an
	// error; ErrCorruptCredential is returned only when encoded is malformed.
	Verify(password, encoded string) (bool, error)
}

// PasswordParams are the argon2id cost parameters.
type PasswordParams struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultPasswordParams returns the parameters used for new hashes.
func DefaultPasswordParams() PasswordParams {
	return PasswordParams{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2Hasher implements PasswordHasher with argon2id, encoding hashes in
// the PHC string format: $argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>.
type Argon2Hasher struct {
	params PasswordParams
}

var _ PasswordHasher = (*Argon2Hasher)(nil)

// NewArgon2Hasher creates a hasher that uses params for new hashes.
// Verification always uses the parameters embedded in the stored hash.
func NewArgon2Hasher(params PasswordParams) *Argon2Hasher {
	return &Argon2Hasher{params: params}
}

// Hash implements PasswordHasher.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify implements PasswordHasher.
func (h *Argon2Hasher) Verify(password, encoded string) (bool, error) {
	params, salt, key, err := decodePasswordHash(encoded)
	if err != nil {
		return false, err
	}

	other := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

func decodePasswordHash(encoded string) (PasswordParams, []byte, []byte, error) {
	var params PasswordParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params, nil, nil, fmt.Errorf("%w: unrecognised hash format", ErrCorruptCredential)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, fmt.Errorf("%w: bad version: %v", ErrCorruptCredential, err)
	}
	if version != argon2.Version {
		return params, nil, nil, fmt.Errorf("%w: unsupported argon2 version %d", ErrCorruptCredential, version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return params, nil, nil, fmt.Errorf("%w: bad parameters: %v", ErrCorruptCredential, err)
	}
	if params.Iterations < 1 || params.Iterations > maxHashIterations ||
		params.Parallelism < 1 ||
		params.Memory < 1 || params.Memory > maxHashMemory {
		return params, nil, nil, fmt.Errorf("%w: parameters out of range", ErrCorruptCredential)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return params, nil, nil, fmt.Errorf("%w: bad salt", ErrCorruptCredential)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params, nil, nil, fmt.Errorf("%w: bad key", ErrCorruptCredential)
	}
	params.SaltLength = uint32(len(salt)) // #nosec G115 - decoded from a bounded string
	params.KeyLength = uint32(len(key))   // #nosec G115 - decoded from a bounded string

	return params, salt, key, nil
}

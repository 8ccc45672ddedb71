package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testHasher() *Argon2Hasher {
	return NewArgon2Hasher(PasswordParams{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
}

func TestArgon2Hasher_roundTrip(t *testing.T) {
	h := testHasher()

	for _, password := range []string{"", "secret", "correct horse battery staple", "pässwörd✓", strings.Repeat("x", 512)} {
		encoded, err := h.Hash(password)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$"), encoded)
		// the leading "$" leaves an empty first segment
		require.NotContains(t, strings.Split(encoded, "$")[1:], password)

		ok, err := h.Verify(password, encoded)
		require.NoError(t, err)
		require.True(t, ok, "password %q", password)

		ok, err = h.Verify(password+"!", encoded)
		require.NoError(t, err)
		require.False(t, ok, "password %q", password)
	}
}

func TestArgon2Hasher_saltedHashesDiffer(t *testing.T) {
	h := testHasher()

	first, err := h.Hash("secret")
	require.NoError(t, err)
	second, err := h.Hash("secret")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestArgon2Hasher_verifyUsesEmbeddedParams(t *testing.T) {
	encoded, err := testHasher().Hash("secret")
	require.NoError(t, err)

	// A hasher configured with different parameters still verifies old hashes.
	other := NewArgon2Hasher(PasswordParams{Memory: 16 * 1024, Iterations: 2, Parallelism: 2, SaltLength: 8, KeyLength: 16})
	ok, err := other.Verify("secret", encoded)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestArgon2Hasher_corruptHashes(t *testing.T) {
	h := testHasher()

	tests := []struct {
		name    string
		encoded string
	}{
		{name: "empty", encoded: ""},
		{name: "plaintext", encoded: "secret"},
		{name: "bcrypt", encoded: "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"},
		{name: "wrong variant", encoded: "$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5"},
		{name: "wrong version", encoded: "$argon2id$v=16$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5"},
		{name: "bad params", encoded: "$argon2id$v=19$m=x,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5"},
		{name: "zero iterations", encoded: "$argon2id$v=19$m=8192,t=0,p=1$c2FsdHNhbHQ$a2V5a2V5"},
		{name: "huge memory", encoded: "$argon2id$v=19$m=4294967295,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5"},
		{name: "huge iterations", encoded: "$argon2id$v=19$m=8192,t=4294967295,p=1$c2FsdHNhbHQ$a2V5a2V5"},
		{name: "bad salt", encoded: "$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5a2V5"},
		{name: "empty key", encoded: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify("secret", tt.encoded)
			require.ErrorIs(t, err, ErrCorruptCredential)
			require.False(t, ok)
		})
	}
}

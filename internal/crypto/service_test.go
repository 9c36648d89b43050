package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Low iteration count keeps the KDF fast in tests; hardness is not under test.
func testService(t *testing.T) *Service {
	t.Helper()
	svc, err := New("unit-test-master-secret", WithIterations(1000))
	require.NoError(t, err)
	return svc
}

func TestNew(t *testing.T) {
	t.Run("rejects empty master secret", func(t *testing.T) {
		_, err := New("")
		require.Error(t, err)
	})

	t.Run("rejects iteration count below floor", func(t *testing.T) {
		_, err := New("secret", WithIterations(10))
		require.Error(t, err)
	})

	t.Run("defaults iterations", func(t *testing.T) {
		svc, err := New("secret")
		require.NoError(t, err)
		assert.Equal(t, DefaultIterations, svc.iterations)
	})
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	svc := testService(t)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"simple", "1990-04-12"},
		{"policy number", "POL-99482-XK"},
		{"unicode", "Müller-Łukasz 株式会社 🏥"},
		{"punctuation", `a"b'c\d.e,f;g:h|i`},
		{"whitespace only", "   \t\n"},
		{"long", strings.Repeat("subscriber-", 500)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope, err := svc.Encrypt(tt.plaintext)
			require.NoError(t, err)
			require.NotEmpty(t, envelope)

			plaintext, err := svc.Decrypt(envelope)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, plaintext)
		})
	}
}

func TestEncryptEmptyInputIsNoOp(t *testing.T) {
	svc := testService(t)

	envelope, err := svc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, envelope)

	plaintext, err := svc.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plaintext)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	svc := testService(t)

	first, err := svc.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := svc.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "fresh salt and nonce must produce distinct envelopes")
}

func TestDecryptRejectsTamperedEnvelope(t *testing.T) {
	svc := testService(t)

	envelope, err := svc.Encrypt("national-id-123-45-6789")
	require.NoError(t, err)
	parts := strings.Split(envelope, ".")
	require.Len(t, parts, 4)

	// Flip one byte inside each segment in turn; every variant must fail
	// authentication, never decrypt to something else.
	for i, name := range []string{"salt", "nonce", "tag", "ciphertext"} {
		t.Run(name, func(t *testing.T) {
			raw, err := base64.RawStdEncoding.DecodeString(parts[i])
			require.NoError(t, err)
			raw[0] ^= 0x01

			tampered := make([]string, 4)
			copy(tampered, parts)
			tampered[i] = base64.RawStdEncoding.EncodeToString(raw)

			_, err = svc.Decrypt(strings.Join(tampered, "."))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAuthenticationFailure)
		})
	}
}

func TestDecryptRejectsMalformedEnvelope(t *testing.T) {
	svc := testService(t)

	for _, envelope := range []string{
		"not-an-envelope",
		"a.b.c",
		"a.b.c.d.e",
		"!!!.???.***.###",
	} {
		_, err := svc.Decrypt(envelope)
		require.Error(t, err, "envelope %q", envelope)
		assert.ErrorIs(t, err, ErrAuthenticationFailure)
	}
}

func TestDecryptWithDifferentSecretFails(t *testing.T) {
	svc := testService(t)
	other, err := New("a-different-master-secret", WithIterations(1000))
	require.NoError(t, err)

	envelope, err := svc.Encrypt("group-number-G-22")
	require.NoError(t, err)

	_, err = other.Decrypt(envelope)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationFailure)
}

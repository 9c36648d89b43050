// Package crypto provides the field-level authenticated encryption
// primitives. Each Encrypt call derives a one-off AES-256 key from the
// injected master secret via salted PBKDF2 and seals the plaintext with
// AES-GCM, so no key or nonce is ever reused across envelopes.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize  = 16
	nonceSize = 12
	tagSize   = 16
	keySize   = 32

	// DefaultIterations balances KDF hardness against request latency; a
	// reveal must finish well under a second on commodity hardware.
	DefaultIterations = 210_000
	minIterations     = 1_000

	envelopeSeparator = "."
	envelopeParts     = 4
)

// ErrAuthenticationFailure marks ciphertext that failed authenticated
// decryption: a bad tag, a malformed envelope, or corruption. Decrypt never
// silently returns garbage.
var ErrAuthenticationFailure = errors.New("ciphertext authentication failed")

// Service performs envelope encryption with an injected master secret.
// The secret is constructor-injected rather than process-global so tests can
// run with isolated secrets.
type Service struct {
	masterSecret []byte
	iterations   int
}

// Option tunes a Service.
type Option func(*Service)

// WithIterations overrides the PBKDF2 iteration count. Values below the
// floor are rejected by New.
func WithIterations(n int) Option {
	return func(s *Service) { s.iterations = n }
}

// New builds a Service from a long-lived master secret.
func New(masterSecret string, opts ...Option) (*Service, error) {
	if masterSecret == "" {
		return nil, errors.New("master secret is required")
	}
	s := &Service{
		masterSecret: []byte(masterSecret),
		iterations:   DefaultIterations,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.iterations < minIterations {
		return nil, fmt.Errorf("kdf iterations must be at least %d", minIterations)
	}
	return s, nil
}

// Encrypt seals plaintext into a self-contained envelope
// salt.nonce.tag.ciphertext (each segment base64). Empty input produces an
// empty envelope, not an error. Two calls on the same plaintext produce
// different envelopes because salt and nonce are fresh per call.
func (s *Service) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	if len(sealed) < tagSize {
		return "", errors.New("sealed payload shorter than tag")
	}
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	enc := base64.RawStdEncoding.EncodeToString
	return strings.Join([]string{enc(salt), enc(nonce), enc(tag), enc(ciphertext)}, envelopeSeparator), nil
}

// Decrypt opens an envelope produced by Encrypt. A malformed envelope or a
// failed tag check yields ErrAuthenticationFailure.
func (s *Service) Decrypt(envelope string) (string, error) {
	if envelope == "" {
		return "", nil
	}

	parts := strings.Split(envelope, envelopeSeparator)
	if len(parts) != envelopeParts {
		return "", fmt.Errorf("%w: envelope has %d segments", ErrAuthenticationFailure, len(parts))
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil || len(salt) != saltSize {
		return "", fmt.Errorf("%w: bad salt segment", ErrAuthenticationFailure)
	}
	nonce, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil || len(nonce) != nonceSize {
		return "", fmt.Errorf("%w: bad nonce segment", ErrAuthenticationFailure)
	}
	tag, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil || len(tag) != tagSize {
		return "", fmt.Errorf("%w: bad tag segment", ErrAuthenticationFailure)
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext segment", ErrAuthenticationFailure)
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
	}
	return string(plaintext), nil
}

func (s *Service) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.masterSecret, salt, s.iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("build cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("build gcm: %w", err)
	}
	return gcm, nil
}

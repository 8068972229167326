// Package secret encrypts small credentials at rest with AES-256-GCM.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("secret: invalid key length")
	// ErrPlaintextEmpty indicates an empty plaintext input.
	ErrPlaintextEmpty = errors.New("secret: plaintext is empty")
	// ErrCiphertextTooShort indicates a truncated ciphertext.
	ErrCiphertextTooShort = errors.New("secret: ciphertext too short")
	// ErrUnsupportedVersion indicates an unknown ciphertext version.
	ErrUnsupportedVersion = errors.New("secret: unsupported ciphertext version")
	// ErrDecryptFailed hides whether the key, the scope or the data was wrong.
	ErrDecryptFailed = errors.New("secret: decrypt failed")
)

// Purpose separates ciphertexts of different kinds sealed for the same owner.
type Purpose string

// PurposeSMTPPassword scopes outbound account passwords.
const PurposeSMTPPassword Purpose = "smtp_password"

// Scope is bound to the ciphertext as additional authenticated data, so a value
// copied to another row fails to decrypt.
type Scope struct {
	OwnerID int64
	Purpose Purpose
}

func (s Scope) aad() []byte {
	sum := sha256.Sum256(fmt.Appendf(nil, "owner=%d\npurpose=%s\n", s.OwnerID, s.Purpose))
	return sum[:]
}

// Box seals and opens secrets.
type Box interface {
	Seal(plaintext []byte, scope Scope) ([]byte, error)
	Open(ciphertext []byte, scope Scope) ([]byte, error)
}

// layout: uint16 version | 12-byte nonce | gcm output
const (
	version   uint16 = 1
	keyLen           = 32
	headerLen        = 2
)

// AESGCM implements Box with a single static key.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM builds a Box from a 32-byte key.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != keyLen {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeyLength, len(key), keyLen)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secret: aes init failed: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secret: gcm init failed: %w", err)
	}
	return &AESGCM{aead: aead}, nil
}

// Seal encrypts plaintext for scope.
func (b *AESGCM) Seal(plaintext []byte, scope Scope) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, ErrPlaintextEmpty
	}

	ns := b.aead.NonceSize()
	out := make([]byte, headerLen+ns, headerLen+ns+len(plaintext)+b.aead.Overhead())
	binary.BigEndian.PutUint16(out[:headerLen], version)
	if _, err := rand.Read(out[headerLen:]); err != nil {
		return nil, fmt.Errorf("secret: nonce generation failed: %w", err)
	}

	return b.aead.Seal(out, out[headerLen:headerLen+ns], plaintext, scope.aad()), nil
}

// Open decrypts ciphertext sealed for the same scope.
func (b *AESGCM) Open(ciphertext []byte, scope Scope) ([]byte, error) {
	ns := b.aead.NonceSize()
	if len(ciphertext) < headerLen+ns+b.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	if v := binary.BigEndian.Uint16(ciphertext[:headerLen]); v != version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	plain, err := b.aead.Open(nil, ciphertext[headerLen:headerLen+ns], ciphertext[headerLen+ns:], scope.aad())
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}

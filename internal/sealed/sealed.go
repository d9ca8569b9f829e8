// Package sealed encrypts credential secrets at rest.
//
// Each value is sealed with XChaCha20-Poly1305 under a key derived from the
// process master key with HKDF-SHA256. The stored form is base64 of:
//
//	[Version: 1 byte (0x01)] [Nonce: 24 bytes (random)] [Ciphertext+Tag: N+16 bytes]
//
// The version byte is authenticated as additional data. Nonces are random,
// so sealing the same plaintext twice yields different ciphertext; stored
// secrets can only be compared after Open.
package sealed

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the required master key length.
const KeySize = 32

// Version is prepended to every sealed value.
const Version byte = 0x01

const overhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

var hkdfInfo = []byte("secure-tokens.credential.secret.v1")

var (
	// ErrKeySize is returned by New for a master key of the wrong length.
	ErrKeySize = errors.New("sealed: master key must be 32 bytes")
	// ErrOpen is returned when a value cannot be decoded or authenticated.
	ErrOpen = errors.New("sealed: cannot open value")
)

// Box seals and opens values under one derived key. Safe for concurrent use.
type Box struct {
	aead cipher.AEAD
}

// New derives the sealing key from masterKey.
func New(masterKey []byte) (*Box, error) {
	if len(masterKey) != KeySize {
		return nil, ErrKeySize
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("deriving sealing key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	return &Box{aead: aead}, nil
}

// NewFromBase64 decodes a standard base64 master key and calls New.
func NewFromBase64(encoded string) (*Box, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding master key: %w", err)
	}
	return New(key)
}

// GenerateKey returns a random master key, base64 encoded.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generating master key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Seal encrypts plaintext and returns the encoded sealed value.
func (b *Box) Seal(plaintext []byte) (string, error) {
	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generating random nonce: %w", err)
	}

	out := make([]byte, 0, overhead+len(plaintext))
	out = append(out, Version)
	out = append(out, nonce[:]...)
	out = b.aead.Seal(out, nonce[:], plaintext, []byte{Version})
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal.
func (b *Box) Open(sealed string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	if len(data) < overhead {
		return nil, fmt.Errorf("%w: value too short", ErrOpen)
	}
	if data[0] != Version {
		return nil, fmt.Errorf("%w: unknown version %#x", ErrOpen, data[0])
	}
	nonce := data[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := b.aead.Open(nil, nonce, data[1+chacha20poly1305.NonceSizeX:], data[:1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return plaintext, nil
}

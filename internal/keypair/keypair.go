// Package keypair generates Ed25519 keypairs and produces and checks
// detached signatures. Keys and signatures travel as URL-safe base64
// without padding.
package keypair

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrDecode is returned by Sign when the secret key is not valid base64 or
// does not decode to an Ed25519 private key.
var ErrDecode = errors.New("keypair: invalid key encoding")

var encoding = base64.RawURLEncoding

// KeyPair holds the encoded forms of an Ed25519 keypair. Secret decodes to
// ed25519.PrivateKeySize bytes, Public to ed25519.PublicKeySize bytes.
type KeyPair struct {
	Secret string
	Public string
}

// PrefixedKeyPair holds both the external token forms and the un-prefixed
// encoded keys that get stored.
type PrefixedKeyPair struct {
	SecretKey    string
	PublicKey    string
	RawSecretKey string
	RawPublicKey string
}

// Generate creates a new Ed25519 keypair from crypto/rand.
func Generate() (KeyPair, error) {
	return generate(rand.Reader)
}

func generate(r io.Reader) (KeyPair, error) {
	public, private, err := ed25519.GenerateKey(r)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return KeyPair{
		Secret: encoding.EncodeToString(private),
		Public: encoding.EncodeToString(public),
	}, nil
}

// GeneratePrefixed creates a keypair and prepends "{prefix}_{environment}_"
// to each encoded key.
func GeneratePrefixed(secretPrefix, publicPrefix, environment string) (PrefixedKeyPair, error) {
	kp, err := Generate()
	if err != nil {
		return PrefixedKeyPair{}, err
	}
	return PrefixedKeyPair{
		SecretKey:    secretPrefix + "_" + environment + "_" + kp.Secret,
		PublicKey:    publicPrefix + "_" + environment + "_" + kp.Public,
		RawSecretKey: kp.Secret,
		RawPublicKey: kp.Public,
	}, nil
}

// Sign returns the encoded detached signature of message.
func Sign(message []byte, encodedSecret string) (string, error) {
	raw, err := encoding.DecodeString(encodedSecret)
	if err != nil {
		return "", fmt.Errorf("%w: secret key: %v", ErrDecode, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("%w: secret key has %d bytes, want %d", ErrDecode, len(raw), ed25519.PrivateKeySize)
	}
	return encoding.EncodeToString(ed25519.Sign(ed25519.PrivateKey(raw), message)), nil
}

// Verify reports whether signature is a valid signature of message under
// the encoded public key. It never fails: any decoding or length problem
// is reported as false.
func Verify(message []byte, encodedSignature, encodedPublic string) bool {
	public, err := encoding.DecodeString(encodedPublic)
	if err != nil || len(public) != ed25519.PublicKeySize {
		return false
	}
	signature, ok := decodeSignature(encodedSignature)
	if !ok || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(public), message, signature)
}

// decodeSignature accepts URL-safe or standard base64, padded or not, since
// signatures arrive in headers produced by arbitrary clients.
func decodeSignature(s string) ([]byte, bool) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	if s == "" {
		return nil, false
	}
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, true
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, true
	}
	return nil, false
}

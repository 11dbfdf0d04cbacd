// Package cipher obfuscates message bodies with a symmetric key derived
// from the group ID alone. Every member derives the same key with no
// handshake, so this is a convenience obfuscation layer, not a security
// boundary: anyone who knows a groupID can read its messages.
package cipher

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/chacha20poly1305"
)

// Placeholder is substituted for the message text whenever decryption
// fails, so a bad payload renders as a visible notice instead of crashing
// or vanishing.
const Placeholder = "[Message could not be decrypted]"

// ErrEncrypt wraps the only failure Encrypt can hit: the system entropy
// source being unavailable.
var ErrEncrypt = fmt.Errorf("cipher: encrypt failed")

// Key derives the group's symmetric key. Deterministic in groupID and
// stable across processes, so independent clients agree without exchange.
func Key(groupID string) []byte {
	sum := sha256.Sum256([]byte("chat-group-" + groupID + "-secret-key"))
	return sum[:]
}

// Encrypt seals plaintext for the group and returns it base64-encoded with
// the nonce prepended.
func Encrypt(plaintext, groupID string) (string, error) {
	aead, err := chacha20poly1305.New(Key(groupID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an encrypted payload with the group's key. It never returns
// an error: malformed, truncated, or differently-keyed input yields
// Placeholder so rendering degrades instead of failing.
func Decrypt(encrypted, groupID string) string {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return Placeholder
	}

	aead, err := chacha20poly1305.New(Key(groupID))
	if err != nil {
		return Placeholder
	}
	if len(raw) < aead.NonceSize() {
		return Placeholder
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return Placeholder
	}
	if !utf8.Valid(plaintext) {
		return Placeholder
	}

	return string(plaintext)
}

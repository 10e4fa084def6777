// Package cardvault seals card numbers for storage with XChaCha20-Poly1305.
//
// Each key id derives its own AEAD key from a master secret with HKDF-SHA256,
// so rotating to a new key id keeps older rows readable as long as the old
// master secret stays registered.
package cardvault

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const MinMasterKeyLength = 32

var (
	ErrUnknownKey   = errors.New("cardvault: unknown key id")
	ErrMalformed    = errors.New("cardvault: malformed ciphertext")
	ErrDecrypt      = errors.New("cardvault: decryption failed")
	ErrKeyTooShort  = errors.New("cardvault: master key must be at least 32 bytes")
	ErrMissingKeyID = errors.New("cardvault: key id is required")
)

// Sealed is an encrypted card number together with the key id that sealed it.
// Ciphertext is nonce || sealed box.
type Sealed struct {
	KeyID      string
	Ciphertext []byte
}

type Vault struct {
	mu     sync.RWMutex
	active string
	aeads  map[string]cipher.AEAD
}

// New creates a vault sealing with keyID derived from master.
func New(master []byte, keyID string) (*Vault, error) {
	v := &Vault{aeads: make(map[string]cipher.AEAD)}
	if err := v.AddKey(master, keyID); err != nil {
		return nil, err
	}
	v.active = keyID
	return v, nil
}

// AddKey registers an additional (usually retired) key for opening.
func (v *Vault) AddKey(master []byte, keyID string) error {
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return ErrMissingKeyID
	}
	if len(master) < MinMasterKeyLength {
		return ErrKeyTooShort
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte("customerhub/cardvault/"+keyID)), key); err != nil {
		return fmt.Errorf("cardvault: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("cardvault: init cipher: %w", err)
	}
	v.mu.Lock()
	v.aeads[keyID] = aead
	v.mu.Unlock()
	return nil
}

func (v *Vault) ActiveKeyID() string { return v.active }

// Seal encrypts plaintext under the active key. aad binds the ciphertext to
// its row (the card id) so it cannot be swapped between cards.
func (v *Vault) Seal(plaintext string, aad []byte) (Sealed, error) {
	v.mu.RLock()
	aead := v.aeads[v.active]
	v.mu.RUnlock()

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return Sealed{}, fmt.Errorf("cardvault: nonce: %w", err)
	}
	return Sealed{KeyID: v.active, Ciphertext: aead.Seal(nonce, nonce, []byte(plaintext), aad)}, nil
}

// Open decrypts s with the key it names.
func (v *Vault) Open(s Sealed, aad []byte) (string, error) {
	v.mu.RLock()
	aead, ok := v.aeads[s.KeyID]
	v.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, s.KeyID)
	}
	if len(s.Ciphertext) < aead.NonceSize()+aead.Overhead() {
		return "", ErrMalformed
	}
	nonce, box := s.Ciphertext[:aead.NonceSize()], s.Ciphertext[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, box, aad)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// ParseMasterKey decodes a base64 (std or raw url) master secret from config.
func ParseMasterKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawURLEncoding, base64.RawStdEncoding} {
		if key, err := enc.DecodeString(encoded); err == nil {
			if len(key) < MinMasterKeyLength {
				return nil, ErrKeyTooShort
			}
			return key, nil
		}
	}
	return nil, errors.New("cardvault: master key is not valid base64")
}

// Package crypto implements the AES-256-GCM field envelope used to protect
// selected event subtrees at rest, and the key acquisition chain.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/vigilo/internal/model"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// keyFileName is the on-disk key location inside the config directory.
const keyFileName = "encryption.key"

// Key owns 32 bytes of AES-256 key material. Copies stay inside this
// package; Zeroize clears the material when the process is done with it.
type Key struct {
	bytes [KeySize]byte
}

// Zeroize overwrites the key material in memory.
func (k *Key) Zeroize() {
	if k == nil {
		return
	}
	for i := range k.bytes {
		k.bytes[i] = 0
	}
}

func keyFromB64(s string) (*Key, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, model.Ef(model.KindCrypto, "decoding key: %v", err)
	}
	if len(raw) != KeySize {
		return nil, model.Ef(model.KindCrypto, "key must be %d bytes, got %d", KeySize, len(raw))
	}
	k := &Key{}
	copy(k.bytes[:], raw)
	for i := range raw {
		raw[i] = 0
	}
	return k, nil
}

// LoadConfigured returns the key from VIGILO_ENCRYPTION_KEY or the key file,
// or (nil, nil) when neither is present. Events stay plaintext without it.
func LoadConfigured() (*Key, error) {
	if env := os.Getenv("VIGILO_ENCRYPTION_KEY"); env != "" {
		return keyFromB64(env)
	}
	data, err := os.ReadFile(model.Path(keyFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, model.E(model.KindCrypto, err)
	}
	return keyFromB64(string(data))
}

// Ensure runs the full acquisition chain: env var, then key file, then
// generate a fresh key, persist it with mode 0600, and return it.
func Ensure() (*Key, error) {
	key, err := LoadConfigured()
	if err != nil || key != nil {
		return key, err
	}

	b64 := GenerateKeyB64()
	path := model.Path(keyFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, model.E(model.KindCrypto, err)
	}
	if err := os.WriteFile(path, []byte(b64+"\n"), 0o600); err != nil {
		return nil, model.E(model.KindCrypto, fmt.Errorf("persisting key: %w", err))
	}
	return keyFromB64(b64)
}

// GenerateKeyB64 returns a fresh random 32-byte key, base64-encoded.
func GenerateKeyB64() string {
	var raw [KeySize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return base64.StdEncoding.EncodeToString(raw[:])
}

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"

	"github.com/ppiankov/vigilo/internal/model"
)

// EnvelopeVersion tags the ciphertext format.
const EnvelopeVersion = "v1"

// Field paths passed as AAD context. The AAD binds ciphertext to its event
// and position so envelopes cannot be swapped between records.
const (
	FieldArguments      = "arguments"
	FieldOutcomeResult  = "outcome.result"
	FieldOutcomeMessage = "outcome.message"
	FieldDiff           = "diff"
)

// Placeholder strings shown by consumers that cannot recover a field.
const (
	Encrypted     = "<encrypted>"
	Undecryptable = "<undecryptable>"
)

// Envelope replaces an encrypted JSON subtree in the ledger.
type Envelope struct {
	Enc   string `json:"__enc"`
	Nonce string `json:"nonce"`
	CT    string `json:"ct"`
}

func aad(eventID, path string) []byte {
	return []byte(eventID + "|" + path)
}

func (k *Key) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(k.bytes[:])
	if err != nil {
		return nil, model.E(model.KindCrypto, err)
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under the event id and field path.
func Encrypt(k *Key, eventID, path string, plaintext []byte) (Envelope, error) {
	gcm, err := k.aead()
	if err != nil {
		return Envelope{}, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, model.E(model.KindCrypto, err)
	}
	ct := gcm.Seal(nil, nonce, plaintext, aad(eventID, path))
	return Envelope{
		Enc:   EnvelopeVersion,
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		CT:    base64.StdEncoding.EncodeToString(ct),
	}, nil
}

// Decrypt opens an envelope sealed with the same event id and field path.
func Decrypt(k *Key, eventID, path string, env Envelope) ([]byte, error) {
	if env.Enc != EnvelopeVersion {
		return nil, model.Ef(model.KindCrypto, "unknown envelope version %q", env.Enc)
	}
	gcm, err := k.aead()
	if err != nil {
		return nil, err
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, model.E(model.KindCrypto, err)
	}
	ct, err := base64.StdEncoding.DecodeString(env.CT)
	if err != nil {
		return nil, model.E(model.KindCrypto, err)
	}
	pt, err := gcm.Open(nil, nonce, ct, aad(eventID, path))
	if err != nil {
		return nil, model.E(model.KindCrypto, err)
	}
	return pt, nil
}

// EncryptJSON seals a raw JSON subtree and returns the envelope as raw JSON.
func EncryptJSON(k *Key, eventID, path string, raw json.RawMessage) (json.RawMessage, error) {
	env, err := Encrypt(k, eventID, path, raw)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, model.E(model.KindCrypto, err)
	}
	return out, nil
}

// IsEnvelope reports whether raw holds an encryption envelope.
func IsEnvelope(raw json.RawMessage) bool {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	return env.Enc != "" && env.CT != ""
}

// DecryptJSON opens an envelope-bearing subtree, best-effort.
// Returns (plaintext, true) on success. For a non-envelope it returns the
// input unchanged with ok=true. With a nil key or AEAD failure it returns
// a placeholder string and ok=false so callers can count failures.
func DecryptJSON(k *Key, eventID, path string, raw json.RawMessage) (json.RawMessage, bool) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Enc == "" || env.CT == "" {
		return raw, true
	}
	if k == nil {
		placeholder := json.RawMessage(`"` + Encrypted + `"`)
		return placeholder, false
	}
	pt, err := Decrypt(k, eventID, path, env)
	if err != nil {
		placeholder := json.RawMessage(`"` + Undecryptable + `"`)
		return placeholder, false
	}
	return pt, true
}

package sealed

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnsealFailed wraps any failure to authenticate or decrypt an
// envelope, including a (sessionId, agentId) scope mismatch.
var ErrUnsealFailed = errors.New("sealed: unseal failed")

// Envelope is the persisted form of a sealed private payload. iv, authTag,
// and cipherText are base64-encoded; keyId is a stable opaque tag, not a
// secret, and is safe to log or display.
type Envelope struct {
	KeyID      string `json:"keyId"`
	IV         string `json:"iv"`
	AuthTag    string `json:"authTag"`
	CipherText string `json:"cipherText"`
}

// Store seals and unseals per-(session,agent) payloads under a single
// process-level master key.
type Store struct {
	master *MasterKey
}

// NewStore creates a Store bound to the given master key.
func NewStore(master *MasterKey) *Store {
	return &Store{master: master}
}

// Seal JSON-encodes payload and encrypts it with AES-256-GCM under a key
// scoped to (sessionID, agentID), using a fresh 12-byte IV.
func (s *Store) Seal(sessionID, agentID string, payload any) (*Envelope, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sealed: marshal payload: %w", err)
	}

	scoped, err := s.master.scope(sessionID, agentID)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(scoped)
	if err != nil {
		return nil, fmt.Errorf("sealed: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("sealed: new gcm: %w", err)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("sealed: generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	tagLen := gcm.Overhead()
	cipherText := sealed[:len(sealed)-tagLen]
	authTag := sealed[len(sealed)-tagLen:]

	return &Envelope{
		KeyID:      keyID(scoped, sessionID, agentID),
		IV:         base64.StdEncoding.EncodeToString(iv),
		AuthTag:    base64.StdEncoding.EncodeToString(authTag),
		CipherText: base64.StdEncoding.EncodeToString(cipherText),
	}, nil
}

// Unseal decrypts env under the key scoped to (sessionID, agentID) and
// decodes the result into out. Unsealing with a mismatched scope fails
// authentication and returns ErrUnsealFailed.
func (s *Store) Unseal(sessionID, agentID string, env *Envelope, out any) error {
	scoped, err := s.master.scope(sessionID, agentID)
	if err != nil {
		return err
	}

	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return fmt.Errorf("%w: decode iv: %v", ErrUnsealFailed, err)
	}
	authTag, err := base64.StdEncoding.DecodeString(env.AuthTag)
	if err != nil {
		return fmt.Errorf("%w: decode auth tag: %v", ErrUnsealFailed, err)
	}
	cipherText, err := base64.StdEncoding.DecodeString(env.CipherText)
	if err != nil {
		return fmt.Errorf("%w: decode cipher text: %v", ErrUnsealFailed, err)
	}

	block, err := aes.NewCipher(scoped)
	if err != nil {
		return fmt.Errorf("sealed: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("sealed: new gcm: %w", err)
	}

	combined := append(append([]byte{}, cipherText...), authTag...)
	plaintext, err := gcm.Open(nil, iv, combined, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsealFailed, err)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("%w: decode plaintext: %v", ErrUnsealFailed, err)
	}
	return nil
}

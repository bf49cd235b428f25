// Package sealed implements the scoped envelope encryption of agents'
// private negotiation context. Plaintext is never persisted or
// transmitted; only {keyId, iv, authTag, cipherText} envelopes reach the
// store.
package sealed

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/awnumar/memguard"
)

// ErrMissingSealingKey is returned by KeyFromConfig when running in
// production without an operator-supplied master key.
var ErrMissingSealingKey = errors.New("missing_sealing_key")

const devFallbackSeed = "molt-negotiation:dev-only:sealed-input-master-key"

// MasterKey holds the process-level 32-byte symmetric key used to derive
// every per-(session,agent) scoped key. It is kept sealed in a memguard
// Enclave at rest and opened only momentarily to derive a scoped key.
type MasterKey struct {
	enclave *memguard.Enclave
}

// KeyFromConfig resolves the master key from an operator-supplied string
// in one of the accepted forms (raw 64-hex, "hex:"-prefixed, "base64:"-
// prefixed, or raw base64 of 32 bytes). If raw is empty and production is
// false and allowInsecureDevKeys is true, a deterministic development key
// is derived from SHA-256 of a fixed seed string. In production with no
// raw key, ErrMissingSealingKey is returned.
func KeyFromConfig(raw string, production, allowInsecureDevKeys bool) (*MasterKey, error) {
	if raw == "" {
		if production {
			return nil, ErrMissingSealingKey
		}
		if !allowInsecureDevKeys {
			return nil, ErrMissingSealingKey
		}
		sum := sha256.Sum256([]byte(devFallbackSeed))
		return newMasterKey(sum[:]), nil
	}

	b, err := decodeKeyForm(raw)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("sealed: master key must be 32 bytes, got %d", len(b))
	}
	return newMasterKey(b), nil
}

func decodeKeyForm(raw string) ([]byte, error) {
	switch {
	case strings.HasPrefix(raw, "hex:"):
		return hex.DecodeString(strings.TrimPrefix(raw, "hex:"))
	case strings.HasPrefix(raw, "base64:"):
		return base64.StdEncoding.DecodeString(strings.TrimPrefix(raw, "base64:"))
	case len(raw) == 64:
		if b, err := hex.DecodeString(raw); err == nil {
			return b, nil
		}
		fallthrough
	default:
		return base64.StdEncoding.DecodeString(raw)
	}
}

func newMasterKey(b []byte) *MasterKey {
	cp := make([]byte, len(b))
	copy(cp, b)
	return &MasterKey{enclave: memguard.NewEnclave(cp)}
}

// scope derives the (sessionId, agentId)-scoped key via
// HMAC-SHA256(master, "sealed:"+sessionId+":"+agentId).
func (k *MasterKey) scope(sessionID, agentID string) ([]byte, error) {
	buf, err := k.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("sealed: open master key: %w", err)
	}
	defer buf.Destroy()

	mac := hmac.New(sha256.New, buf.Bytes())
	mac.Write([]byte("sealed:" + sessionID + ":" + agentID))
	return mac.Sum(nil), nil
}

// keyID computes the stable opaque tag for a scoped key: the first 24 hex
// characters of SHA-256(scopedKey || sessionId || agentId).
func keyID(scopedKey []byte, sessionID, agentID string) string {
	h := sha256.New()
	h.Write(scopedKey)
	h.Write([]byte(sessionID))
	h.Write([]byte(agentID))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:24]
}

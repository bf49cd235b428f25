package canon

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestMarshal_SortsKeys(t *testing.T) {
	a, err := Marshal(map[string]any{"b": 1, "a": 2})
	if err != nil {
		t.Fatalf("marshal a: %v", err)
	}
	b, err := Marshal(map[string]any{"a": 2, "b": 1})
	if err != nil {
		t.Fatalf("marshal b: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected identical bytes regardless of field order, got %q vs %q", a, b)
	}
	if string(a) != `{"a":2,"b":1}` {
		t.Fatalf("unexpected canonical form: %q", a)
	}
}

func TestMarshal_NestedStable(t *testing.T) {
	v := map[string]any{
		"turns": []any{
			map[string]any{"status": "continue", "turn": 1},
			map[string]any{"turn": 2, "status": "agreed"},
		},
		"sessionId": "sess-1",
	}
	out, err := Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"sessionId":"sess-1","turns":[{"status":"continue","turn":1},{"status":"agreed","turn":2}]}`
	if string(out) != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestHash_MutationChangesDigest(t *testing.T) {
	h1, err := HashHex(map[string]any{"status": "agreed"})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := HashHex(map[string]any{"status": "failed"})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("expected different hashes for different payloads")
	}
}

func TestPersonalMessage_RoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey).Hex()

	msg := []byte("MOLT_NEGOTIATION_TURN_PROOF|v1|sess-1|1")
	sig, err := SignPersonal(key, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	got, err := RecoverPersonal(msg, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != want {
		t.Fatalf("recovered %s, want %s", got, want)
	}
}

func TestPersonalMessage_TamperedMessageFailsRecovery(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey).Hex()

	msg := []byte("original")
	sig, err := SignPersonal(key, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	got, err := RecoverPersonal([]byte("tampered"), sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got == want {
		t.Fatalf("expected recovery over a different message to not match original signer")
	}
}

package sealed

import "testing"

type privateContext struct {
	Role           string  `json:"role"`
	ReservePrice   float64 `json:"reservePrice"`
	CreditScore    int     `json:"creditScore"`
	IncomeUSDCents int64   `json:"incomeUsdCents"`
}

func testMasterKey(t *testing.T) *MasterKey {
	t.Helper()
	k, err := KeyFromConfig("", false, true)
	if err != nil {
		t.Fatalf("resolve dev master key: %v", err)
	}
	return k
}

func TestSeal_UnsealRoundTrip(t *testing.T) {
	store := NewStore(testMasterKey(t))

	in := privateContext{Role: "buyer", ReservePrice: 120, CreditScore: 720, IncomeUSDCents: 9_000_000}
	env, err := store.Seal("sess-1", "agent-a", in)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	var out privateContext
	if err := store.Unseal("sess-1", "agent-a", env, &out); err != nil {
		t.Fatalf("unseal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestUnseal_ScopeMismatchFails(t *testing.T) {
	store := NewStore(testMasterKey(t))

	env, err := store.Seal("sess-1", "agent-a", privateContext{Role: "buyer"})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	var out privateContext
	if err := store.Unseal("sess-1", "agent-b", env, &out); err == nil {
		t.Fatalf("expected unseal with mismatched agent to fail")
	}
	if err := store.Unseal("sess-2", "agent-a", env, &out); err == nil {
		t.Fatalf("expected unseal with mismatched session to fail")
	}
}

func TestSeal_DistinctIVsPerCall(t *testing.T) {
	store := NewStore(testMasterKey(t))

	e1, err := store.Seal("sess-1", "agent-a", privateContext{Role: "buyer"})
	if err != nil {
		t.Fatalf("seal 1: %v", err)
	}
	e2, err := store.Seal("sess-1", "agent-a", privateContext{Role: "buyer"})
	if err != nil {
		t.Fatalf("seal 2: %v", err)
	}
	if e1.IV == e2.IV {
		t.Fatalf("expected distinct IVs across seal calls")
	}
	if e1.KeyID != e2.KeyID {
		t.Fatalf("expected stable keyId for the same scope, got %s vs %s", e1.KeyID, e2.KeyID)
	}
}

package canon

import (
	"crypto/ecdsa"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/crypto"
)

// PersonalMessageDigest computes the ERC-191 "Ethereum Signed Message"
// digest of msg: keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg).
// Both turn proofs (§4.D) and session attestations (§4.H) are signed over
// this digest — it is the only externally observable cryptographic
// dependency and must be reproduced exactly.
func PersonalMessageDigest(msg []byte) [32]byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(msg))
	return crypto.Keccak256Hash([]byte(prefix), msg)
}

// SignPersonal signs msg's ERC-191 digest with key and returns a 65-byte
// recoverable signature (r || s || v) with v normalized to 27/28.
func SignPersonal(key *ecdsa.PrivateKey, msg []byte) ([]byte, error) {
	digest := PersonalMessageDigest(msg)
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, fmt.Errorf("canon: sign personal message: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// RecoverPersonal recovers the signer address from a 65-byte recoverable
// signature over msg's ERC-191 digest. Accepts v in {0,1,27,28}.
func RecoverPersonal(msg []byte, sig []byte) (string, error) {
	if len(sig) != 65 {
		return "", fmt.Errorf("canon: signature must be 65 bytes, got %d", len(sig))
	}
	digest := PersonalMessageDigest(msg)

	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(digest[:], normalized)
	if err != nil {
		return "", fmt.Errorf("canon: recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

package discord

import (
	"crypto/ed25519"
	"encoding/hex"
)

// VerifySignature checks the ed25519 signature Discord attaches to every
// interaction webhook request. publicKeyHex is the application's public key;
// signature and timestamp come from the X-Signature-Ed25519 and
// X-Signature-Timestamp headers, and body is the raw request body.
func VerifySignature(publicKeyHex, signature, timestamp string, body []byte) bool {
	key, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	msg := append([]byte(timestamp), body...)
	return ed25519.Verify(ed25519.PublicKey(key), msg, sig)
}

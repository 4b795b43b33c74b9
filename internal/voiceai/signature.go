package voiceai

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// VerifySignature checks a webhook payload against the shared secret.
// The provider signs the raw body with HMAC-SHA256 and sends the hex
// digest in a header (an optional "sha256=" prefix is tolerated).
//
// A false return means the signature did not match. An error means the
// signature could not be evaluated at all (e.g. not valid hex); callers
// may choose leniency for that case, but never for a mismatch.
func VerifySignature(payload []byte, key, signature string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("voiceai: verification key is empty")
	}
	sig := strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false, fmt.Errorf("voiceai: signature is not valid hex: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil)), nil
}

// Sign computes the signature header value for a payload. Used by tests
// and by tooling that replays webhook deliveries.
func Sign(payload []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

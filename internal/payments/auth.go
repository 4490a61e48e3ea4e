package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Signature"

// Authenticator decides whether a notification body was produced by a holder
// of the shared secret. Verify never fails loudly; false means reject.
type Authenticator interface {
	Verify(rawBody []byte, signature string) bool
}

type HMACAuthenticator struct {
	secret []byte
}

func NewHMACAuthenticator(secret []byte) *HMACAuthenticator {
	return &HMACAuthenticator{secret: append([]byte(nil), secret...)}
}

// Sign returns the hex signature the sender is expected to attach to body.
func (a *HMACAuthenticator) Sign(body []byte) string {
	m := hmac.New(sha256.New, a.secret)
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

// Verify computes the MAC over the exact bytes received and compares its
// lowercase hex form to signature in constant time. Missing, malformed,
// uppercase or wrong-length signatures are false.
func (a *HMACAuthenticator) Verify(rawBody []byte, signature string) bool {
	if len(a.secret) == 0 || len(rawBody) == 0 || len(signature) != hex.EncodedLen(sha256.Size) {
		return false
	}
	return hmac.Equal([]byte(a.Sign(rawBody)), []byte(signature))
}

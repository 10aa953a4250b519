package trigger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader is the forge header carrying the HMAC payload signature.
const SignatureHeader = "X-Hub-Signature-256"

// VerifySignature checks a hex "sha256=" HMAC-SHA256 signature over body using
// secret. An empty secret disables verification and always passes.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" {
		return true
	}
	sig := strings.TrimPrefix(header, "sha256=")
	if sig == header || sig == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(sig)))
}

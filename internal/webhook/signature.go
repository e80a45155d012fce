package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignaturePrefix is the algorithm tag GitHub puts in front of the hex digest
// in X-Hub-Signature-256.
const SignaturePrefix = "sha256="

// Verify reports whether header carries the HMAC-SHA256 of body keyed by secret.
//
// body must be the exact bytes received, before any JSON decoding. header must
// have the form "sha256=<hex>". Malformed headers, a wrong digest length and an
// empty secret all verify false. The digests are compared with hmac.Equal, which
// takes the same time for every pair of 32-byte inputs.
func Verify(body []byte, header string, secret []byte) bool {
	if len(secret) == 0 {
		return false
	}
	hexSig, ok := strings.CutPrefix(header, SignaturePrefix)
	if !ok {
		return false
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	return hmac.Equal(got, digest(body, secret))
}

// Sign returns the X-Hub-Signature-256 header value for body.
func Sign(body, secret []byte) string {
	return SignaturePrefix + hex.EncodeToString(digest(body, secret))
}

func digest(body, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

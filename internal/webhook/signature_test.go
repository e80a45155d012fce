package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"testing/quick"
)

func TestVerify(t *testing.T) {
	secret := []byte("test-secret-key")
	body := []byte(`{"action":"opened","issue":{"number":1}}`)
	valid := Sign(body, secret)

	tests := []struct {
		name   string
		body   []byte
		header string
		secret []byte
		want   bool
	}{
		{name: "valid", body: body, header: valid, secret: secret, want: true},
		{name: "deadbeef", body: body, header: "sha256=deadbeef", secret: secret, want: false},
		{name: "all zero digest", body: body, header: SignaturePrefix + strings.Repeat("0", 64), secret: secret, want: false},
		{name: "missing prefix", body: body, header: strings.TrimPrefix(valid, SignaturePrefix), secret: secret, want: false},
		{name: "sha1 prefix", body: body, header: "sha1=" + strings.TrimPrefix(valid, SignaturePrefix), secret: secret, want: false},
		{name: "uppercase prefix", body: body, header: "SHA256=" + strings.TrimPrefix(valid, SignaturePrefix), secret: secret, want: false},
		{name: "malformed hex", body: body, header: "sha256=not-valid-hex", secret: secret, want: false},
		{name: "truncated digest", body: body, header: valid[:len(valid)-2], secret: secret, want: false},
		{name: "extended digest", body: body, header: valid + "00", secret: secret, want: false},
		{name: "empty header", body: body, header: "", secret: secret, want: false},
		{name: "empty secret", body: body, header: valid, secret: nil, want: false},
		{name: "wrong secret", body: body, header: valid, secret: []byte("other"), want: false},
		{name: "tampered body", body: []byte(`{"action":"closed","issue":{"number":1}}`), header: valid, secret: secret, want: false},
		{name: "reserialized body", body: []byte(`{"action": "opened", "issue": {"number": 1}}`), header: valid, secret: secret, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(tt.body, tt.header, tt.secret); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyAcceptsUppercaseHex(t *testing.T) {
	secret := []byte("s")
	body := []byte("payload")
	header := SignaturePrefix + strings.ToUpper(strings.TrimPrefix(Sign(body, secret), SignaturePrefix))
	if !Verify(body, header, secret) {
		t.Error("uppercase hex digest should verify")
	}
}

func TestSignMatchesReferenceHMAC(t *testing.T) {
	// Known vector: HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog").
	got := Sign([]byte("The quick brown fox jumps over the lazy dog"), []byte("key"))
	want := "sha256=f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"
	if got != want {
		t.Errorf("Sign() = %s, want %s", got, want)
	}
}

func TestVerifySignRoundTripProperty(t *testing.T) {
	prop := func(body, secret []byte) bool {
		if len(secret) == 0 {
			return !Verify(body, Sign(body, secret), secret)
		}
		return Verify(body, Sign(body, secret), secret)
	}
	if err := quick.Check(prop, nil); err != nil {
		t.Error(err)
	}
}

func TestVerifySingleBitMutationProperty(t *testing.T) {
	prop := func(body, secret []byte, pos uint) bool {
		if len(body) == 0 || len(secret) == 0 {
			return true
		}
		header := Sign(body, secret)

		bit := pos % uint(len(body)*8)
		mutated := append([]byte(nil), body...)
		mutated[bit/8] ^= 1 << (bit % 8)

		return !Verify(mutated, header, secret)
	}
	if err := quick.Check(prop, &quick.Config{MaxCount: 500}); err != nil {
		t.Error(err)
	}
}

func TestVerifyEveryBitOfFixedBody(t *testing.T) {
	secret := []byte("fixed-secret")
	body := []byte(`{"zen":"Design for failure."}`)
	header := Sign(body, secret)

	for i := range len(body) * 8 {
		mutated := append([]byte(nil), body...)
		mutated[i/8] ^= 1 << (i % 8)
		if Verify(mutated, header, secret) {
			t.Fatalf("bit %d flipped but signature still verified", i)
		}
	}
}

// The comparison is only safe if it always runs over full-length digests:
// anything that does not decode to exactly sha256.Size bytes must be refused
// before hmac.Equal is reached, and every well-formed digest must go through it.
func TestVerifyComparesFixedLengthDigests(t *testing.T) {
	secret := []byte("k")
	body := []byte("b")
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	want := mac.Sum(nil)

	for n := 0; n <= sha256.Size+1; n++ {
		prefix := want
		if n < len(want) {
			prefix = want[:n]
		} else {
			prefix = append(append([]byte(nil), want...), make([]byte, n-len(want))...)
		}
		got := Verify(body, SignaturePrefix+hex.EncodeToString(prefix), secret)
		if (n == sha256.Size) != got {
			t.Errorf("digest of %d bytes: Verify() = %v", n, got)
		}
	}
}

func BenchmarkVerify(b *testing.B) {
	secret := []byte("bench-secret")
	body := []byte(strings.Repeat("x", 4096))
	header := Sign(body, secret)
	for b.Loop() {
		Verify(body, header, secret)
	}
}

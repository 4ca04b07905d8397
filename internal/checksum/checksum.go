package checksum

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Separator between the hex digest and the salt index in an X-VERIFY tag.
const Separator = "###"

// Signer produces and validates the X-VERIFY tag PhonePe attaches to every
// request and callback: hex(sha256(payload + endpoint + saltKey)) + "###" + saltIndex.
type Signer struct {
	saltKey   string
	saltIndex string
}

func NewSigner(saltKey, saltIndex string) *Signer {
	return &Signer{saltKey: saltKey, saltIndex: saltIndex}
}

// Sign computes the tag over the already base64-encoded payload and the
// endpoint path. The payload is hashed as-is; callers must not decode it first.
func (s *Signer) Sign(payload []byte, endpoint string) string {
	h := sha256.New()
	h.Write(payload)
	h.Write([]byte(endpoint))
	h.Write([]byte(s.saltKey))
	return hex.EncodeToString(h.Sum(nil)) + Separator + s.saltIndex
}

// Verify recomputes the expected tag and compares it against the received one
// in constant time, so a forged callback cannot probe the salt key through
// timing differences.
func (s *Signer) Verify(payload []byte, endpoint, received string) bool {
	expected := s.Sign(payload, endpoint)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}

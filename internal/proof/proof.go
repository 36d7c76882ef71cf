package proof

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Verifier gates spends on privacy-enabled cards. The artifact is opaque to
// the ledger: it is either verified or it is not, and its contents never
// participate in balance computation.
type Verifier interface {
	Verify(ctx context.Context, subject, artifact string) (bool, error)
}

// HMACVerifier accepts artifacts that are an HMAC-SHA256 of the subject
// under a shared secret. It stands in for a real proof system behind the
// same gate interface.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier constructs a verifier from the shared secret.
func NewHMACVerifier(secret string) (*HMACVerifier, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, errors.New("proof: empty secret")
	}
	return &HMACVerifier{secret: []byte(trimmed)}, nil
}

// Issue produces a valid artifact for a subject. Exposed for clients that
// hold the shared secret and for tests.
func (v *HMACVerifier) Issue(subject string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(subject))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks an artifact against the subject.
func (v *HMACVerifier) Verify(_ context.Context, subject, artifact string) (bool, error) {
	expected := v.Issue(subject)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(artifact))), nil
}

package gameservice

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// newToken mints an opaque 32-byte hex auth token for a freshly logged
// in session. Grounded on the teacher's generateBlowfishKey: crypto/rand
// is reserved for values that must not be guessable, unlike the
// session-local math/rand/v2 ids the teacher's login package uses for
// non-secret sequence numbers.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating auth token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

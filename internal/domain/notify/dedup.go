package notify

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/pulseboard/pulseboard/internal/domain/conflict"
)

// DedupKey derives the deterministic suppression key for a notification:
// same recipient, conflict kind, other party and subject always hash to the
// same key, so repeat conflicts inside the cool-down window collapse.
func DedupKey(recipient string, kind conflict.MatchKind, otherUserID, subject string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{recipient, string(kind), otherUserID, subject}, "\x00")))
	return hex.EncodeToString(sum[:])
}

package conflict

import (
	"time"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
)

// MatchKind distinguishes file-overlap matches from semantic ones.
type MatchKind string

const (
	KindFile     MatchKind = "file"
	KindSemantic MatchKind = "semantic"
)

// Match is the ephemeral result of a detector query. Matches are never
// persisted; they only surface as notifications after filtering upstream.
type Match struct {
	Kind         MatchKind      `json:"kind"`
	Subject      activity.Event `json:"subject_event"`
	Other        activity.Event `json:"other_event"`
	OtherUserID  string         `json:"other_user_id"`
	Score        float64        `json:"score"`
	MatchedFiles []string       `json:"matched_files,omitempty"`
}

// Config holds detection windows and thresholds. These are product tuning
// constants, not correctness invariants.
type Config struct {
	FileWindow         time.Duration
	SemanticWindow     time.Duration
	SemanticThreshold  float64
	MaxSemanticMatches int
}

package conflict

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
)

// EventSource is the slice of the activity store the detector reads.
type EventSource interface {
	Query(ctx context.Context, opts activity.QueryOptions) ([]activity.Event, error)
}

// Detector finds file-overlap and semantic-similarity conflicts between one
// event and other users' recent history.
type Detector struct {
	events EventSource
	cfg    Config
	logger *slog.Logger
}

// NewDetector creates a new conflict detector.
func NewDetector(events EventSource, cfg Config, logger *slog.Logger) *Detector {
	if cfg.MaxSemanticMatches <= 0 {
		cfg.MaxSemanticMatches = 10
	}
	return &Detector{events: events, cfg: cfg, logger: logger}
}

// FindConflicts returns all matches for the given event. An event with no
// files and no embedding yields no matches; self-matches are excluded. The
// same pair of events may appear as both a file and a semantic match —
// deduplication is the notification engine's job.
func (d *Detector) FindConflicts(ctx context.Context, ev *activity.Event) ([]Match, error) {
	if ev == nil || (len(ev.Files) == 0 && !ev.HasEmbedding()) {
		return nil, nil
	}

	var matches []Match

	if len(ev.Files) > 0 {
		fileMatches, err := d.findFileConflicts(ctx, ev)
		if err != nil {
			return nil, err
		}
		matches = append(matches, fileMatches...)
	}

	if ev.HasEmbedding() {
		semanticMatches, err := d.findSemanticConflicts(ctx, ev)
		if err != nil {
			// Semantic failure degrades to file-only detection.
			d.logger.Warn("semantic conflict detection failed", "event_id", ev.ID, "error", err)
		} else {
			matches = append(matches, semanticMatches...)
		}
	}

	return matches, nil
}

// findFileConflicts collects other users' significant events inside the file
// window that reference at least one of the subject's paths. When several
// events from the same user overlap, only the most recent is kept.
func (d *Detector) findFileConflicts(ctx context.Context, ev *activity.Event) ([]Match, error) {
	others, err := d.events.Query(ctx, activity.QueryOptions{
		ExcludeUserID:   ev.UserID,
		Since:           ev.Timestamp.Add(-d.cfg.FileWindow),
		OnlySignificant: true,
	})
	if err != nil {
		return nil, fmt.Errorf("querying file window: %w", err)
	}

	subject := ev.FileSet()
	latest := make(map[string]Match) // by other user id

	for _, other := range others {
		if other.ID == ev.ID {
			continue
		}
		var overlap []string
		for _, f := range other.Files {
			if _, ok := subject[f]; ok {
				overlap = append(overlap, f)
			}
		}
		if len(overlap) == 0 {
			continue
		}
		sort.Strings(overlap)

		prev, seen := latest[other.UserID]
		if seen && !other.Timestamp.After(prev.Other.Timestamp) {
			continue
		}
		latest[other.UserID] = Match{
			Kind:         KindFile,
			Subject:      *ev,
			Other:        other,
			OtherUserID:  other.UserID,
			Score:        1.0,
			MatchedFiles: overlap,
		}
	}

	matches := make([]Match, 0, len(latest))
	for _, m := range latest {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].OtherUserID < matches[j].OtherUserID
	})
	return matches, nil
}

// findSemanticConflicts scores the subject's embedding against other users'
// embedded events inside the semantic window and keeps the top matches above
// the similarity threshold.
func (d *Detector) findSemanticConflicts(ctx context.Context, ev *activity.Event) ([]Match, error) {
	others, err := d.events.Query(ctx, activity.QueryOptions{
		ExcludeUserID:    ev.UserID,
		Since:            ev.Timestamp.Add(-d.cfg.SemanticWindow),
		RequireEmbedding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("querying semantic window: %w", err)
	}

	var matches []Match
	for _, other := range others {
		if other.ID == ev.ID {
			continue
		}
		score := CosineSimilarity(ev.Embedding, other.Embedding)
		if score <= d.cfg.SemanticThreshold {
			continue
		}
		matches = append(matches, Match{
			Kind:        KindSemantic,
			Subject:     *ev,
			Other:       other,
			OtherUserID: other.UserID,
			Score:       score,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > d.cfg.MaxSemanticMatches {
		matches = matches[:d.cfg.MaxSemanticMatches]
	}
	return matches, nil
}

// CosineSimilarity returns the cosine similarity of two vectors clamped to
// [0, 1]. Mismatched or zero-norm vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
	"github.com/pulseboard/pulseboard/internal/domain/conflict"
	"github.com/pulseboard/pulseboard/internal/domain/stream"
)

// highWaterKey names the engine's persisted cycle boundary.
const highWaterKey = "notify_engine"

// EngineConfig holds the scheduler's tuning knobs.
type EngineConfig struct {
	Interval        time.Duration // cycle period
	Cooldown        time.Duration // minimum gap between same-key notifications
	StreamRetention time.Duration // backlog age pruned each cycle; 0 disables
	WorkspaceID     string        // workspace notifications are published to
}

// Engine runs the scheduled notification cycle: scan significant activity
// since the high-water mark, detect conflicts, create deduplicated
// notifications and publish them to the stream.
type Engine struct {
	events    EventSource
	detector  Detector
	repo      Repository
	state     StateRepository
	publisher Publisher
	pruner    Pruner
	cfg       EngineConfig
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewEngine creates a notification engine. publisher and pruner may be nil
// in tests; the engine then only persists notifications.
func NewEngine(
	events EventSource,
	detector Detector,
	repo Repository,
	state StateRepository,
	publisher Publisher,
	pruner Pruner,
	cfg EngineConfig,
	logger *slog.Logger,
) *Engine {
	if cfg.Cooldown < time.Second {
		// A sub-second cool-down would zero the dedup bucket divisor.
		cfg.Cooldown = time.Hour
	}
	return &Engine{
		events:    events,
		detector:  detector,
		repo:      repo,
		state:     state,
		publisher: publisher,
		pruner:    pruner,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start schedules the cycle at the configured interval. The first cycle
// fires one interval after start; RunCycle can be called directly for an
// immediate pass.
func (e *Engine) Start() error {
	e.cron = cron.New()
	_, err := e.cron.AddFunc(fmt.Sprintf("@every %s", e.cfg.Interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Interval)
		defer cancel()
		created, err := e.RunCycle(ctx)
		if err != nil {
			// Abandon this cycle; the next tick re-processes the same window
			// and the dedup insert keeps that idempotent.
			e.logger.Error("notification cycle failed", "error", err)
			return
		}
		if created > 0 {
			e.logger.Info("notification cycle complete", "created", created)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling notification cycle: %w", err)
	}
	e.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running cycle to finish.
func (e *Engine) Stop() {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
}

// RunCycle executes one scan/create pass and returns how many notifications
// were created. A single event's detection failing is logged and skipped;
// only infrastructure errors abort the cycle.
func (e *Engine) RunCycle(ctx context.Context) (int, error) {
	cycleStart := time.Now()

	highWater, err := e.state.HighWater(ctx, highWaterKey)
	if err != nil {
		return 0, fmt.Errorf("loading high-water mark: %w", err)
	}
	if highWater.IsZero() {
		highWater = cycleStart.Add(-e.cfg.Interval)
	}

	// The boundary is on server ingestion time, so a client-backdated
	// timestamp cannot land an event below the already-advanced mark.
	events, err := e.events.Query(ctx, activity.QueryOptions{
		OnlySignificant: true,
		CreatedSince:    highWater,
		Ascending:       true,
	})
	if err != nil {
		return 0, fmt.Errorf("scanning significant activity: %w", err)
	}

	created := 0
	for i := range events {
		ev := events[i]
		matches, err := e.detector.FindConflicts(ctx, &ev)
		if err != nil {
			e.logger.Warn("conflict detection failed for event", "event_id", ev.ID, "error", err)
			continue
		}
		for _, m := range matches {
			ok, err := e.processMatch(ctx, m, cycleStart)
			if err != nil {
				return created, err
			}
			if ok {
				created++
			}
		}
	}

	if err := e.state.SetHighWater(ctx, highWaterKey, cycleStart); err != nil {
		return created, fmt.Errorf("advancing high-water mark: %w", err)
	}

	if e.pruner != nil && e.cfg.StreamRetention > 0 {
		pruned, err := e.pruner.PruneBefore(ctx, cycleStart.Add(-e.cfg.StreamRetention))
		if err != nil {
			e.logger.Warn("stream backlog prune failed", "error", err)
		} else if pruned > 0 {
			e.logger.Debug("pruned stream backlog", "rows", pruned)
		}
	}

	return created, nil
}

// processMatch turns one conflict match into at most one notification.
// Returns true when a row was created. Suppression (cool-down hit or losing
// the conditional insert) is expected steady-state behavior, not a failure.
func (e *Engine) processMatch(ctx context.Context, m conflict.Match, now time.Time) (bool, error) {
	recipient := m.Subject.UserID
	key := DedupKey(recipient, m.Kind, m.OtherUserID, primarySubject(m))

	// Cheap pre-check; the conditional insert below is the guarantee.
	exists, err := e.repo.ExistsSince(ctx, recipient, key, now.Add(-e.cfg.Cooldown))
	if err != nil {
		return false, fmt.Errorf("checking cool-down: %w", err)
	}
	if exists {
		return false, nil
	}

	data, err := json.Marshal(Payload{
		RelatedUserID:  m.OtherUserID,
		Files:          m.MatchedFiles,
		Similarity:     semanticScore(m),
		Summary:        m.Other.Summary,
		SubjectEventID: m.Subject.ID,
		OtherEventID:   m.Other.ID,
	})
	if err != nil {
		return false, fmt.Errorf("encoding notification payload: %w", err)
	}

	n := &Notification{
		UserID:   recipient,
		Type:     notificationType(m.Kind),
		Severity: notificationSeverity(m.Kind),
		DedupKey: key,
		Data:     data,
	}
	bucket := now.Unix() / int64(e.cfg.Cooldown/time.Second)
	createdRow, err := e.repo.CreateIfAbsent(ctx, n, bucket)
	if err != nil {
		return false, fmt.Errorf("creating notification: %w", err)
	}
	if !createdRow {
		return false, nil
	}

	if e.publisher != nil {
		_, err := e.publisher.Publish(ctx, e.cfg.WorkspaceID, stream.EntityNotification, stream.ActionCreate, n)
		if err != nil {
			// The notification is persisted; stream consumers catch up via
			// delta sync.
			e.logger.Warn("failed to publish notification event", "notification_id", n.ID, "error", err)
		}
	}

	return true, nil
}

// primarySubject identifies what the conflict is about: the overlapping file
// for file matches, the other event for semantic ones.
func primarySubject(m conflict.Match) string {
	if m.Kind == conflict.KindFile && len(m.MatchedFiles) > 0 {
		return m.MatchedFiles[0]
	}
	return strconv.FormatInt(m.Other.ID, 10)
}

func semanticScore(m conflict.Match) float64 {
	if m.Kind == conflict.KindSemantic {
		return m.Score
	}
	return 0
}

func notificationType(kind conflict.MatchKind) Type {
	if kind == conflict.KindFile {
		return TypeConflictFile
	}
	return TypeConflictSemantic
}

func notificationSeverity(kind conflict.MatchKind) Severity {
	if kind == conflict.KindFile {
		return SeverityUrgent
	}
	return SeverityNormal
}

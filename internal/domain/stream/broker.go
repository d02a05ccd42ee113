package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	subscriberBuffer = 64
	readBatch        = 256
)

// Broker fans persisted events out to live subscribers. Correctness across
// processes comes from the shared log: each subscription independently tails
// it from its own position, so the process that persists an event need not
// be the one pushing it. The in-process nudge only shortens latency for
// locally produced events.
type Broker struct {
	log    Log
	poll   time.Duration
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]map[string]*Subscription // workspace -> sub id -> sub
}

// NewBroker creates a broker over the given log. poll bounds how stale a
// subscriber can be to events persisted by another process.
func NewBroker(log Log, poll time.Duration, logger *slog.Logger) *Broker {
	if poll <= 0 {
		poll = time.Second
	}
	return &Broker{
		log:    log,
		poll:   poll,
		logger: logger,
		subs:   make(map[string]map[string]*Subscription),
	}
}

// Subscription is one client's live view of a workspace. Events arrive on
// Events() in id order, replayed backlog first, then the live tail.
type Subscription struct {
	id          string
	workspaceID string
	ch          chan Event
	nudge       chan struct{}
	cancel      context.CancelFunc
	done        chan struct{}
}

// Events returns the delivery channel. It is closed when the subscription
// ends.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close releases broker-side resources immediately.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// Subscribe opens a resumable subscription. Events with id > lastEventID are
// replayed from the log before newly produced events follow, with no gap and
// no duplication. Pass 0 to receive only new events.
func (b *Broker) Subscribe(ctx context.Context, workspaceID string, lastEventID int64) (*Subscription, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("workspace id is required")
	}

	if lastEventID <= 0 {
		// No resume position: start at the current head of the log.
		head, err := b.log.LatestID(ctx, workspaceID)
		if err != nil {
			return nil, fmt.Errorf("resolving stream head: %w", err)
		}
		lastEventID = head
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		id:          uuid.NewString(),
		workspaceID: workspaceID,
		ch:          make(chan Event, subscriberBuffer),
		nudge:       make(chan struct{}, 1),
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	b.mu.Lock()
	if b.subs[workspaceID] == nil {
		b.subs[workspaceID] = make(map[string]*Subscription)
	}
	b.subs[workspaceID][sub.id] = sub
	b.mu.Unlock()

	go b.run(ctx, sub, lastEventID)
	return sub, nil
}

// Publish appends an event to the shared log and wakes local subscribers.
func (b *Broker) Publish(ctx context.Context, workspaceID, entityType, action string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	ev := &Event{
		WorkspaceID: workspaceID,
		EntityType:  entityType,
		Action:      action,
		Payload:     data,
		CreatedAt:   time.Now(),
	}
	if err := b.log.Append(ctx, ev); err != nil {
		return nil, fmt.Errorf("appending stream event: %w", err)
	}

	b.mu.Lock()
	for _, sub := range b.subs[workspaceID] {
		select {
		case sub.nudge <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()

	return ev, nil
}

// Close ends every open subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	var all []*Subscription
	for _, ws := range b.subs {
		for _, sub := range ws {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}

// run is the per-subscription push loop: a stateless reader over the log,
// woken by local publishes or the poll timer.
func (b *Broker) run(ctx context.Context, sub *Subscription, lastEventID int64) {
	defer func() {
		b.remove(sub)
		close(sub.ch)
		close(sub.done)
	}()

	timer := time.NewTimer(b.poll)
	defer timer.Stop()

	next := lastEventID
	for {
		batch, err := b.log.After(ctx, sub.workspaceID, next, readBatch)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn("stream log read failed", "workspace_id", sub.workspaceID, "error", err)
			batch = nil
		}

		for _, ev := range batch {
			select {
			case sub.ch <- ev:
				next = ev.ID
			case <-ctx.Done():
				return
			}
		}

		if len(batch) == readBatch {
			// More backlog likely pending; keep draining.
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(b.poll)

		select {
		case <-ctx.Done():
			return
		case <-sub.nudge:
		case <-timer.C:
		}
	}
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ws, ok := b.subs[sub.workspaceID]; ok {
		delete(ws, sub.id)
		if len(ws) == 0 {
			delete(b.subs, sub.workspaceID)
		}
	}
}

// Package watch provides the long-running round-up monitor service.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/theirongolddev/roundup/internal/logging"
	"github.com/theirongolddev/roundup/internal/roundup"

	"go.uber.org/zap"
)

// ErrNoSession is returned by Run when the session has no token yet.
var ErrNoSession = errors.New("watch: session is awaiting a token")

// Driver is the part of the round-up session the service uses. It never
// requests transfers.
type Driver interface {
	Snapshot() roundup.Snapshot
	Subscribe() (<-chan roundup.Snapshot, func())
	SelectWeek(ctx context.Context, weeksAgo int) error
	Restart(ctx context.Context) error
}

// Config controls the service runtime behavior.
type Config struct {
	Interval     time.Duration
	Addr         string
	EventsBuffer int
	Logger       *zap.Logger
}

// Snapshot is a compact session state for status/event payloads.
type Snapshot struct {
	At               time.Time `json:"at"`
	State            string    `json:"state"`
	Cause            string    `json:"cause,omitempty"`
	Account          string    `json:"account_uid,omitempty"`
	Goal             string    `json:"goal_uid,omitempty"`
	GoalName         string    `json:"goal_name,omitempty"`
	Week             int       `json:"week"`
	Items            int       `json:"items"`
	RoundUpMinor     int64     `json:"round_up_minor"`
	GoalBalanceMinor int64     `json:"goal_balance_minor"`
	Currency         string    `json:"currency,omitempty"`
	LastTransferUID  string    `json:"last_transfer_uid,omitempty"`
}

// Delta captures snapshot deltas between observations.
type Delta struct {
	Items            int   `json:"items"`
	RoundUpMinor     int64 `json:"round_up_minor"`
	GoalBalanceMinor int64 `json:"goal_balance_minor"`
}

func (d Delta) isZero() bool {
	return d.Items == 0 &&
		d.RoundUpMinor == 0 &&
		d.GoalBalanceMinor == 0
}

// Event types.
const (
	EventSnapshot     = "snapshot"
	EventStateChange  = "state_change"
	EventRoundUpDelta = "roundup_delta"
)

// Event is emitted whenever the observed state changes.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	Delta     Delta     `json:"delta"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastPollAt      time.Time `json:"last_poll_at"`
	PollIntervalSec int       `json:"poll_interval_sec"`
	PollCount       int64     `json:"poll_count"`
	Summary         Snapshot  `json:"summary"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// Service provides the watch runtime and HTTP API.
type Service struct {
	cfg Config
	drv Driver
	log *zap.Logger

	mu          sync.RWMutex
	startedAt   time.Time
	lastPollAt  time.Time
	pollCount   int64
	lastError   string
	hasSnapshot bool
	snapshot    Snapshot
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new watch service for drv.
func New(drv Driver, cfg Config) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}

	return &Service{
		cfg:       cfg,
		drv:       drv,
		log:       logging.OrNop(cfg.Logger).Named(logging.ComponentWatch),
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/stream", s.handleStream)
	return mux
}

// Run starts HTTP endpoints and periodic reloads until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if _, ok := s.drv.Snapshot().State.(roundup.AwaitingToken); ok {
		return ErrNoSession
	}

	snaps, unsubscribe := s.drv.Subscribe()
	defer unsubscribe()

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("watch started", zap.String("addr", s.cfg.Addr), zap.Duration("interval", s.cfg.Interval))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case snap := <-snaps:
			s.observe(snap)
		case <-ticker.C:
			s.pollOnce(ctx)
		case err := <-errCh:
			return fmt.Errorf("watch http server: %w", err)
		}
	}
}

// pollOnce reloads the session. From Ready only the current feed window is
// refetched; after a failure or a transfer the full cycle reruns.
func (s *Service) pollOnce(ctx context.Context) {
	snap := s.drv.Snapshot()

	var err error
	switch snap.State.(type) {
	case roundup.Ready:
		err = s.drv.SelectWeek(ctx, 0)
	case roundup.Failed, roundup.TransferComplete:
		err = s.drv.Restart(ctx)
	default:
		return
	}

	s.mu.Lock()
	s.lastPollAt = time.Now()
	s.pollCount++
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("reload failed", zap.Error(err))
	}
}

// observe turns a session snapshot into an event when something changed.
// Loading snapshots are transient and ignored.
func (s *Service) observe(rs roundup.Snapshot) {
	if _, ok := rs.State.(roundup.Loading); ok {
		return
	}
	snap := snapshotFromSession(rs)

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot
	s.hasSnapshot = true
	s.snapshot = snap

	switch {
	case !prevExists:
		ev = Event{Type: EventSnapshot, Snapshot: snap}
		publish = true
	case prev.State != snap.State:
		ev = Event{Type: EventStateChange, Snapshot: snap, Delta: diffSnapshots(prev, snap)}
		publish = true
	default:
		if delta := diffSnapshots(prev, snap); !delta.isZero() {
			ev = Event{Type: EventRoundUpDelta, Snapshot: snap, Delta: delta}
			publish = true
		}
	}
	if publish {
		s.nextEventID++
		ev.ID = s.nextEventID
		ev.Timestamp = snap.At
	}
	s.mu.Unlock()

	if publish {
		s.log.Debug("event", zap.String("type", ev.Type), zap.String(logging.FieldState, snap.State))
		s.publishEvent(ev)
	}
}

func snapshotFromSession(rs roundup.Snapshot) Snapshot {
	snap := Snapshot{
		At:               rs.At,
		State:            rs.State.Name(),
		Account:          rs.Account.AccountUID,
		Goal:             rs.Goal.SavingsGoalUID,
		GoalName:         rs.Goal.Name,
		Week:             rs.Week,
		Items:            len(rs.Items),
		RoundUpMinor:     rs.RoundUpMinor,
		GoalBalanceMinor: rs.Goal.TotalSaved.MinorUnits,
		Currency:         rs.Currency,
	}
	switch st := rs.State.(type) {
	case roundup.Failed:
		snap.Cause = st.Message()
	case roundup.TransferComplete:
		snap.LastTransferUID = st.Transfer.TransferUID
	}
	return snap
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Items:            curr.Items - prev.Items,
		RoundUpMinor:     curr.RoundUpMinor - prev.RoundUpMinor,
		GoalBalanceMinor: curr.GoalBalanceMinor - prev.GoalBalanceMinor,
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	current := Event{
		Type:      EventSnapshot,
		Timestamp: time.Now(),
		Snapshot:  s.snapshotStatus().Summary,
	}
	writeSSE(w, current)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

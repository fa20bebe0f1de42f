package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process. It backs local development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	subs    map[int]*memorySub
	nextSub int
	now     func() time.Time
}

type memorySub struct {
	ch    chan Snapshot
	since time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs: make(map[int]*memorySub),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the timestamp source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

var _ Store = (*MemoryStore)(nil)

// stamp returns a timestamp that never goes backwards relative to earlier inserts.
func (s *MemoryStore) stamp() time.Time {
	ts := s.now()
	if n := len(s.records); n > 0 && ts.Before(s.records[n-1].Timestamp) {
		ts = s.records[n-1].Timestamp
	}
	return ts
}

// Create inserts a new visitor question.
func (s *MemoryStore) Create(ctx context.Context, q Question) (*Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Record{
		ID:             uuid.NewString(),
		Name:           q.Name,
		Question:       q.Question,
		Timestamp:      s.stamp(),
		QuestionLength: QuestionLength(q.Question),
	}
	s.records = append(s.records, rec)
	s.publishLocked()
	out := rec
	return &out, nil
}

// LatestPending returns the newest unanswered question.
func (s *MemoryStore) LatestPending(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Pending() {
			out := s.records[i]
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// Answer attaches a reply to the record with the given id.
func (s *MemoryStore) Answer(ctx context.Context, id string, a Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID != id {
			continue
		}
		if s.records[i].Answered() {
			return ErrAlreadyAnswered
		}
		at := a.At
		if at.IsZero() {
			at = s.now()
		}
		s.records[i].Reply = a.Body
		s.records[i].IsFromStuart = true
		s.records[i].Read = true
		s.records[i].ReplyTimestamp = &at
		if a.SID != "" {
			s.records[i].ReplySID = a.SID
		}
		s.publishLocked()
		return nil
	}
	return ErrNotFound
}

// CreateStandalone records a reply with no question to attach to.
func (s *MemoryStore) CreateStandalone(ctx context.Context, a Answer) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.stamp()
	at := a.At
	if at.IsZero() {
		at = ts
	}
	rec := Record{
		ID:             uuid.NewString(),
		Name:           StandaloneName,
		Question:       StandaloneQuestion,
		Reply:          a.Body,
		Timestamp:      ts,
		IsFromStuart:   true,
		Read:           true,
		ReplyTimestamp: &at,
		ReplySID:       a.SID,
		Standalone:     true,
	}
	s.records = append(s.records, rec)
	s.publishLocked()
	out := rec
	return &out, nil
}

// List returns records in insertion order.
func (s *MemoryStore) List(ctx context.Context, since time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(since), nil
}

// Subscribe delivers the current set immediately and again after every write.
// Slow consumers only ever see the latest snapshot.
func (s *MemoryStore) Subscribe(ctx context.Context, since time.Time) (<-chan Snapshot, error) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	sub := &memorySub{ch: make(chan Snapshot, 1), since: since}
	s.subs[id] = sub
	sub.ch <- Snapshot{Records: s.snapshotLocked(since)}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(sub.ch)
		s.mu.Unlock()
	}()
	return sub.ch, nil
}

func (s *MemoryStore) snapshotLocked(since time.Time) []Record {
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if after(r, since) {
			out = append(out, r)
		}
	}
	return out
}

func (s *MemoryStore) publishLocked() {
	for _, sub := range s.subs {
		snap := Snapshot{Records: s.snapshotLocked(sub.since)}
		select {
		case sub.ch <- snap:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- snap
		}
	}
}

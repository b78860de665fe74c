// Package store holds the audit ledger backends: in-memory, Postgres and gorm
// (SQLite / MySQL). Every backend also keeps the outbox consumed by the relay.
package store

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"compliancehub/internal/audit"
	"compliancehub/internal/platform/memtx"
)

// Memory is the in-process ledger. Writes made inside a memtx unit of work
// are undone if it rolls back.
type Memory struct {
	mu      sync.RWMutex
	entries []*audit.Entry
	outbox  []*audit.OutboxMessage
	seq     int
}

func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) Append(ctx context.Context, entry *audit.Entry) error {
	stored, err := cloneEntry(entry)
	if err != nil {
		return err
	}
	payload, err := encodePayload(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.seq++
	msg := &audit.OutboxMessage{
		ID:        strconv.Itoa(s.seq),
		EntryID:   entry.ID,
		Action:    entry.Action,
		Payload:   payload,
		CreatedAt: entry.Timestamp,
	}
	s.entries = append(s.entries, stored)
	s.outbox = append(s.outbox, msg)
	s.mu.Unlock()

	memtx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries = slices.DeleteFunc(s.entries, func(e *audit.Entry) bool { return e.ID == entry.ID })
		s.outbox = slices.DeleteFunc(s.outbox, func(m *audit.OutboxMessage) bool { return m.EntryID == entry.ID })
	})
	return nil
}

func (s *Memory) Query(_ context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*audit.Entry, 0)
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !filter.Matches(e) {
			continue
		}
		c, err := cloneEntry(e)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	// Newest insertion first already; the stable sort keeps that order for
	// equal timestamps.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// PendingOutbox returns up to limit unpublished messages, oldest first.
func (s *Memory) PendingOutbox(_ context.Context, limit int) ([]audit.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.outbox) {
		limit = len(s.outbox)
	}
	out := make([]audit.OutboxMessage, 0, limit)
	for _, m := range s.outbox {
		if len(out) == limit {
			break
		}
		out = append(out, *m)
	}
	return out, nil
}

// MarkPublished removes the published messages.
func (s *Memory) MarkPublished(_ context.Context, ids []string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = slices.DeleteFunc(s.outbox, func(m *audit.OutboxMessage) bool { return slices.Contains(ids, m.ID) })
	return nil
}

func cloneEntry(e *audit.Entry) (*audit.Entry, error) {
	raw, err := audit.EncodeMetadata(e.Metadata)
	if err != nil {
		return nil, err
	}
	md, err := audit.DecodeMetadata(raw)
	if err != nil {
		return nil, err
	}
	c := *e
	c.Metadata = md
	return &c, nil
}

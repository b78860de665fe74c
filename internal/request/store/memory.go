// Package store holds the request backends: in-memory, Postgres and gorm
// (SQLite / MySQL).
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"compliancehub/internal/platform/memtx"
	"compliancehub/internal/request/models"
	id "compliancehub/pkg/domain"
	"compliancehub/pkg/platform/sentinel"
)

// Memory keeps requests in process. Writers are serialised by the shared
// memtx.Tx.
type Memory struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*models.Request
	items    map[id.RequestID][]*models.Item
}

func NewMemory() *Memory {
	return &Memory{
		requests: make(map[id.RequestID]*models.Request),
		items:    make(map[id.RequestID][]*models.Item),
	}
}

func (s *Memory) CreateRequest(ctx context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return fmt.Errorf("request %s: %w", r.ID, sentinel.ErrConflict)
	}
	stored := *r
	stored.Items = nil
	s.requests[r.ID] = &stored
	items := make([]*models.Item, 0, len(r.Items))
	for _, item := range r.Items {
		copied := *item
		items = append(items, &copied)
	}
	s.items[r.ID] = items
	memtx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.requests, r.ID)
		delete(s.items, r.ID)
	})
	return nil
}

func (s *Memory) FindByID(_ context.Context, requestID id.RequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	out := *r
	return &out, nil
}

func (s *Memory) FindByIDForUpdate(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	return s.FindByID(ctx, requestID)
}

func (s *Memory) ListByBuyer(_ context.Context, buyerID id.UserID) ([]*models.Request, error) {
	return s.list(func(r *models.Request) bool { return r.BuyerID == buyerID }), nil
}

func (s *Memory) ListByFactory(_ context.Context, factoryID id.FactoryID) ([]*models.Request, error) {
	return s.list(func(r *models.Request) bool { return r.FactoryID == factoryID }), nil
}

func (s *Memory) list(match func(*models.Request) bool) []*models.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Request, 0)
	for _, r := range s.requests {
		if match(r) {
			copied := *r
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Memory) ListItems(_ context.Context, requestIDs []id.RequestID) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Item, 0)
	for _, requestID := range requestIDs {
		for _, item := range s.items[requestID] {
			out = append(out, copyItem(item))
		}
	}
	return out, nil
}

func (s *Memory) FindItem(_ context.Context, requestID id.RequestID, itemID id.ItemID) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items[requestID] {
		if item.ID == itemID {
			return copyItem(item), nil
		}
	}
	return nil, fmt.Errorf("request item %s: %w", itemID, sentinel.ErrNotFound)
}

func (s *Memory) UpdateItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.items[item.RequestID] {
		if existing.ID != item.ID {
			continue
		}
		previous := existing
		s.items[item.RequestID][i] = copyItem(item)
		memtx.OnRollback(ctx, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.items[item.RequestID][i] = previous
		})
		return nil
	}
	return fmt.Errorf("request item %s: %w", item.ID, sentinel.ErrNotFound)
}

func (s *Memory) UpdateStatus(ctx context.Context, requestID id.RequestID, status models.Status, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	previous := *r
	r.Status = status
	r.UpdatedAt = updatedAt
	memtx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		*r = previous
	})
	return nil
}

func copyItem(item *models.Item) *models.Item {
	out := *item
	if item.EvidenceID != nil {
		evidenceID := *item.EvidenceID
		out.EvidenceID = &evidenceID
	}
	if item.VersionID != nil {
		versionID := *item.VersionID
		out.VersionID = &versionID
	}
	return &out
}

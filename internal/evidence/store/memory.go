// Package store holds the evidence backends: in-memory, Postgres and gorm
// (SQLite / MySQL).
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"compliancehub/internal/evidence/models"
	"compliancehub/internal/platform/memtx"
	id "compliancehub/pkg/domain"
	"compliancehub/pkg/platform/sentinel"
)

// Memory keeps evidence in process. Writers are serialised by the shared
// memtx.Tx, so FindByIDForUpdate needs no extra locking.
type Memory struct {
	mu       sync.RWMutex
	evidence map[id.EvidenceID]*models.Evidence
	versions map[id.EvidenceID][]*models.Version
}

func NewMemory() *Memory {
	return &Memory{
		evidence: make(map[id.EvidenceID]*models.Evidence),
		versions: make(map[id.EvidenceID][]*models.Version),
	}
}

func (s *Memory) CreateEvidence(ctx context.Context, e *models.Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.evidence[e.ID]; ok {
		return fmt.Errorf("evidence %s: %w", e.ID, sentinel.ErrConflict)
	}
	stored := *e
	stored.Versions = nil
	s.evidence[e.ID] = &stored
	memtx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.evidence, e.ID)
	})
	return nil
}

func (s *Memory) CreateVersion(ctx context.Context, v *models.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.evidence[v.EvidenceID]; !ok {
		return fmt.Errorf("evidence %s: %w", v.EvidenceID, sentinel.ErrNotFound)
	}
	for _, existing := range s.versions[v.EvidenceID] {
		if existing.VersionNumber == v.VersionNumber {
			return fmt.Errorf("version %d of %s: %w", v.VersionNumber, v.EvidenceID, sentinel.ErrConflict)
		}
	}
	stored := *v
	s.versions[v.EvidenceID] = append(s.versions[v.EvidenceID], &stored)
	memtx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.versions[v.EvidenceID]
		for i, existing := range list {
			if existing.ID == v.ID {
				s.versions[v.EvidenceID] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (s *Memory) FindByID(_ context.Context, evidenceID id.EvidenceID) (*models.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.evidence[evidenceID]
	if !ok {
		return nil, fmt.Errorf("evidence %s: %w", evidenceID, sentinel.ErrNotFound)
	}
	out := *e
	return &out, nil
}

func (s *Memory) FindByIDForUpdate(ctx context.Context, evidenceID id.EvidenceID) (*models.Evidence, error) {
	return s.FindByID(ctx, evidenceID)
}

func (s *Memory) LatestVersionNumber(_ context.Context, evidenceID id.EvidenceID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := 0
	for _, v := range s.versions[evidenceID] {
		if v.VersionNumber > latest {
			latest = v.VersionNumber
		}
	}
	return latest, nil
}

func (s *Memory) ListByFactory(_ context.Context, factoryID id.FactoryID) ([]*models.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Evidence, 0)
	for _, e := range s.evidence {
		if e.FactoryID == factoryID {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Memory) ListVersions(_ context.Context, evidenceIDs []id.EvidenceID) ([]*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Version, 0)
	for _, evidenceID := range evidenceIDs {
		list := make([]*models.Version, 0, len(s.versions[evidenceID]))
		for _, v := range s.versions[evidenceID] {
			copied := *v
			list = append(list, &copied)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].VersionNumber < list[j].VersionNumber })
		out = append(out, list...)
	}
	return out, nil
}

func (s *Memory) FindVersion(_ context.Context, evidenceID id.EvidenceID, versionID id.VersionID) (*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions[evidenceID] {
		if v.ID == versionID {
			copied := *v
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("version %s: %w", versionID, sentinel.ErrNotFound)
}

func (s *Memory) Delete(ctx context.Context, evidenceID id.EvidenceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.evidence[evidenceID]
	if !ok {
		return fmt.Errorf("evidence %s: %w", evidenceID, sentinel.ErrNotFound)
	}
	versions := s.versions[evidenceID]
	delete(s.evidence, evidenceID)
	delete(s.versions, evidenceID)
	memtx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.evidence[evidenceID] = e
		s.versions[evidenceID] = versions
	})
	return nil
}

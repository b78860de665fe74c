// Package adapters connects the request workflow to other components.
package adapters

import (
	"context"
	"errors"

	evidenceModels "compliancehub/internal/evidence/models"
	"compliancehub/internal/request/models"
	id "compliancehub/pkg/domain"
)

// VersionResolver is the evidence component's ownership lookup.
type VersionResolver interface {
	ResolveVersion(ctx context.Context, factoryID id.FactoryID, evidenceID id.EvidenceID, versionID id.VersionID) (*evidenceModels.Version, error)
}

// EvidenceAdapter answers ownership questions through the evidence service
// rather than its tables.
type EvidenceAdapter struct {
	resolver VersionResolver
}

func NewEvidenceAdapter(resolver VersionResolver) *EvidenceAdapter {
	return &EvidenceAdapter{resolver: resolver}
}

func (a *EvidenceAdapter) ResolveVersion(ctx context.Context, factoryID id.FactoryID, evidenceID id.EvidenceID, versionID id.VersionID) error {
	_, err := a.resolver.ResolveVersion(ctx, factoryID, evidenceID, versionID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, evidenceModels.ErrNotOwned):
		return models.ErrEvidenceNotOwned
	case errors.Is(err, evidenceModels.ErrVersionNotFound):
		return models.ErrVersionNotFound
	default:
		return err
	}
}

package models

import (
	"strings"
	"time"

	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
)

// Evidence is a factory-owned compliance document.
//
// Invariants:
//   - FactoryID is set at construction and never changes
//   - Versions are numbered 1, 2, 3, ... per evidence with no gaps
//   - Deleting evidence deletes all of its versions
type Evidence struct {
	ID        id.EvidenceID `json:"id"`
	FactoryID id.FactoryID  `json:"factoryId"`
	Name      string        `json:"name"`
	DocType   string        `json:"docType"`
	Expiry    id.Date       `json:"expiry"`
	Notes     string        `json:"notes"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Versions  []*Version    `json:"versions"`
}

// Version is an immutable snapshot of an evidence's notes and expiry.
// Notes and Expiry are nil when the uploader left them out.
type Version struct {
	ID            id.VersionID  `json:"id"`
	EvidenceID    id.EvidenceID `json:"evidenceId"`
	VersionNumber int           `json:"versionNumber"`
	Notes         *string       `json:"notes"`
	Expiry        *id.Date      `json:"expiry"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// NewEvidence builds an evidence and its first version. Empty notes are
// stored as "" on both.
func NewEvidence(factoryID id.FactoryID, name, docType string, expiry id.Date, notes string, now time.Time) (*Evidence, *Version, error) {
	if factoryID.IsZero() {
		return nil, nil, dErrors.New(dErrors.CodeInvariantViolation, "evidence requires a factory")
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(docType) == "" {
		return nil, nil, dErrors.New(dErrors.CodeInvariantViolation, "evidence requires name and docType")
	}
	if expiry.IsZero() {
		return nil, nil, dErrors.New(dErrors.CodeInvariantViolation, "evidence requires an expiry")
	}
	e := &Evidence{
		ID:        id.NewEvidenceID(),
		FactoryID: factoryID,
		Name:      name,
		DocType:   docType,
		Expiry:    expiry,
		Notes:     notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	v1Notes, v1Expiry := notes, expiry
	v := &Version{
		ID:            id.NewVersionID(),
		EvidenceID:    e.ID,
		VersionNumber: 1,
		Notes:         &v1Notes,
		Expiry:        &v1Expiry,
		CreatedAt:     now,
	}
	e.Versions = []*Version{v}
	return e, v, nil
}

// NewVersion builds the version that follows latest (0 when none exist).
func NewVersion(evidenceID id.EvidenceID, latest int, notes *string, expiry *id.Date, now time.Time) (*Version, error) {
	if latest < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "latest version number cannot be negative")
	}
	return &Version{
		ID:            id.NewVersionID(),
		EvidenceID:    evidenceID,
		VersionNumber: latest + 1,
		Notes:         notes,
		Expiry:        expiry,
		CreatedAt:     now,
	}, nil
}

// CreateResult is returned by evidence creation.
type CreateResult struct {
	EvidenceID id.EvidenceID `json:"evidenceId"`
	VersionID  id.VersionID  `json:"versionId"`
}

// AddVersionResult is returned when a version is appended.
type AddVersionResult struct {
	VersionID     id.VersionID `json:"versionId"`
	VersionNumber int          `json:"versionNumber"`
}

// CreateInput is the validated payload for creating evidence.
type CreateInput struct {
	Name    string
	DocType string
	Expiry  id.Date
	Notes   string
}

// AddVersionInput is the validated payload for a new version.
type AddVersionInput struct {
	Notes  *string
	Expiry *id.Date
}

var (
	// ErrNotOwned covers both a missing evidence and one owned by another
	// factory so that callers cannot discover other tenants.
	ErrNotOwned = dErrors.New(dErrors.CodeForbidden, "evidence not found or does not belong to your factory")
	// ErrVersionNotFound is returned when a version id is not one of the
	// evidence's versions.
	ErrVersionNotFound = dErrors.New(dErrors.CodeNotFound, "evidence version not found")
	// ErrVersionContention is returned when version numbering kept colliding.
	ErrVersionContention = dErrors.New(dErrors.CodeConflict, "evidence is being updated concurrently, retry")
)

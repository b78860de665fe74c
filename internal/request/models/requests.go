package models

import (
	"strings"
	"unicode/utf8"

	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
)

const (
	maxTitleLength   = 255
	maxDocTypeLength = 128
	maxItems         = 100
)

// CreateRequestRequest is the body of POST /requests.
type CreateRequestRequest struct {
	FactoryID string        `json:"factoryId"`
	Title     string        `json:"title"`
	Items     []ItemRequest `json:"items"`
}

type ItemRequest struct {
	DocType string `json:"docType"`
}

func (r *CreateRequestRequest) Normalize() {
	r.FactoryID = strings.TrimSpace(r.FactoryID)
	r.Title = strings.TrimSpace(r.Title)
	for i := range r.Items {
		r.Items[i].DocType = strings.TrimSpace(r.Items[i].DocType)
	}
}

func (r *CreateRequestRequest) Validate() error {
	if utf8.RuneCountInString(r.Title) > maxTitleLength {
		return dErrors.New(dErrors.CodeValidation, "title is too long")
	}
	if len(r.Items) > maxItems {
		return dErrors.New(dErrors.CodeValidation, "too many items")
	}
	if r.FactoryID == "" {
		return dErrors.New(dErrors.CodeValidation, "factoryId is required")
	}
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(r.Items) == 0 {
		return ErrNoItems
	}
	for _, item := range r.Items {
		if item.DocType == "" {
			return dErrors.New(dErrors.CodeValidation, "every item needs a docType")
		}
		if utf8.RuneCountInString(item.DocType) > maxDocTypeLength {
			return dErrors.New(dErrors.CodeValidation, "docType is too long")
		}
	}
	return nil
}

func (r *CreateRequestRequest) Input() CreateInput {
	docTypes := make([]string, len(r.Items))
	for i, item := range r.Items {
		docTypes[i] = item.DocType
	}
	return CreateInput{FactoryID: id.FactoryID(r.FactoryID), Title: r.Title, DocTypes: docTypes}
}

// FulfillItemRequest is the body of POST /requests/{id}/items/{itemId}/fulfill.
type FulfillItemRequest struct {
	EvidenceID string `json:"evidenceId"`
	VersionID  string `json:"versionId"`

	evidenceID id.EvidenceID
	versionID  id.VersionID
}

func (r *FulfillItemRequest) Normalize() {
	r.EvidenceID = strings.TrimSpace(r.EvidenceID)
	r.VersionID = strings.TrimSpace(r.VersionID)
}

// Validate rejects missing ids. An evidenceId that is not a UUID cannot name
// evidence of the caller's factory, so it fails the same way a foreign one does.
func (r *FulfillItemRequest) Validate() error {
	if r.EvidenceID == "" || r.VersionID == "" {
		return dErrors.New(dErrors.CodeValidation, "evidenceId and versionId are required")
	}
	evidenceID, err := id.ParseEvidenceID(r.EvidenceID)
	if err != nil {
		return ErrEvidenceNotOwned
	}
	versionID, err := id.ParseVersionID(r.VersionID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "versionId must be a UUID")
	}
	r.evidenceID, r.versionID = evidenceID, versionID
	return nil
}

func (r *FulfillItemRequest) Input() FulfillInput {
	return FulfillInput{EvidenceID: r.evidenceID, VersionID: r.versionID}
}

package models

import (
	"strings"
	"time"

	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
)

// Status is the lifecycle state of a request.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusCompleted Status = "COMPLETED"
)

// ItemStatus is the lifecycle state of a single requested document.
type ItemStatus string

const (
	ItemPending   ItemStatus = "PENDING"
	ItemFulfilled ItemStatus = "FULFILLED"
)

// Request is a buyer's ask to a factory for a set of documents.
//
// Invariants:
//   - a request has at least one item
//   - Status is COMPLETED iff every item is FULFILLED
type Request struct {
	ID        id.RequestID `json:"id"`
	BuyerID   id.UserID    `json:"buyerId"`
	FactoryID id.FactoryID `json:"factoryId"`
	Title     string       `json:"title"`
	Status    Status       `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Items     []*Item      `json:"items"`
}

// Item is one requested document type. EvidenceID and VersionID are set
// once the item is fulfilled. Position keeps items in creation order.
type Item struct {
	ID         id.ItemID      `json:"id"`
	RequestID  id.RequestID   `json:"requestId"`
	DocType    string         `json:"docType"`
	Status     ItemStatus     `json:"status"`
	EvidenceID *id.EvidenceID `json:"evidenceId"`
	VersionID  *id.VersionID  `json:"versionId"`
	Position   int            `json:"-"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// NewRequest builds an OPEN request with one PENDING item per docType.
func NewRequest(buyerID id.UserID, factoryID id.FactoryID, title string, docTypes []string, now time.Time) (*Request, error) {
	if buyerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request requires a buyer")
	}
	if factoryID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request requires a factory")
	}
	if strings.TrimSpace(title) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request requires a title")
	}
	if len(docTypes) == 0 {
		return nil, ErrNoItems
	}
	r := &Request{
		ID:        id.NewRequestID(),
		BuyerID:   buyerID,
		FactoryID: factoryID,
		Title:     title,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
		Items:     make([]*Item, 0, len(docTypes)),
	}
	for i, docType := range docTypes {
		if strings.TrimSpace(docType) == "" {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "request item requires a docType")
		}
		r.Items = append(r.Items, &Item{
			ID:        id.NewItemID(),
			RequestID: r.ID,
			DocType:   docType,
			Status:    ItemPending,
			Position:  i,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return r, nil
}

// Fulfill attaches an evidence version to a pending item.
func (i *Item) Fulfill(evidenceID id.EvidenceID, versionID id.VersionID, now time.Time) error {
	if i.Status == ItemFulfilled {
		return ErrItemAlreadyFulfilled
	}
	i.EvidenceID = &evidenceID
	i.VersionID = &versionID
	i.Status = ItemFulfilled
	i.UpdatedAt = now
	return nil
}

// AllFulfilled reports whether every item is FULFILLED. An empty set is not
// complete.
func AllFulfilled(items []*Item) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if item.Status != ItemFulfilled {
			return false
		}
	}
	return true
}

// Summary is the request part of a fulfilment response.
type Summary struct {
	ID        id.RequestID `json:"id"`
	Status    Status       `json:"status"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// FulfillResult is returned by item fulfilment.
type FulfillResult struct {
	Request Summary `json:"request"`
	Item    *Item   `json:"item"`
}

// CreateInput is the validated payload for a new request.
type CreateInput struct {
	FactoryID id.FactoryID
	Title     string
	DocTypes  []string
}

// FulfillInput names the evidence version that satisfies an item.
type FulfillInput struct {
	EvidenceID id.EvidenceID
	VersionID  id.VersionID
}

var (
	ErrNoItems = dErrors.New(dErrors.CodeValidation, "a request needs at least one item")
	// ErrNotOwned covers both a missing request and one addressed to another
	// factory.
	ErrNotOwned             = dErrors.New(dErrors.CodeForbidden, "request not found or does not belong to your factory")
	ErrNotFound             = dErrors.New(dErrors.CodeNotFound, "request not found")
	ErrItemNotFound         = dErrors.New(dErrors.CodeNotFound, "request item not found")
	ErrItemAlreadyFulfilled = dErrors.New(dErrors.CodeConflict, "request item is already fulfilled")
	ErrEvidenceNotOwned     = dErrors.New(dErrors.CodeForbidden, "evidence not found or does not belong to your factory")
	ErrVersionNotFound      = dErrors.New(dErrors.CodeNotFound, "evidence version not found")
)

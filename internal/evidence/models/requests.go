package models

import (
	"strings"
	"unicode/utf8"

	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
)

const (
	maxNameLength    = 255
	maxDocTypeLength = 128
	maxNotesLength   = 4000
)

// CreateEvidenceRequest is the body of POST /evidence.
type CreateEvidenceRequest struct {
	Name    string `json:"name"`
	DocType string `json:"docType"`
	Expiry  string `json:"expiry"`
	Notes   string `json:"notes,omitempty"`

	expiry id.Date
}

func (r *CreateEvidenceRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.DocType = strings.TrimSpace(r.DocType)
	r.Expiry = strings.TrimSpace(r.Expiry)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *CreateEvidenceRequest) Validate() error {
	if utf8.RuneCountInString(r.Name) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name is too long")
	}
	if utf8.RuneCountInString(r.DocType) > maxDocTypeLength {
		return dErrors.New(dErrors.CodeValidation, "docType is too long")
	}
	if utf8.RuneCountInString(r.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes are too long")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.DocType == "" {
		return dErrors.New(dErrors.CodeValidation, "docType is required")
	}
	if r.Expiry == "" {
		return dErrors.New(dErrors.CodeValidation, "expiry is required")
	}
	expiry, err := id.ParseDate(r.Expiry)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "expiry must be a date (YYYY-MM-DD or RFC 3339)")
	}
	r.expiry = expiry
	return nil
}

// Input converts a validated request.
func (r *CreateEvidenceRequest) Input() CreateInput {
	return CreateInput{Name: r.Name, DocType: r.DocType, Expiry: r.expiry, Notes: r.Notes}
}

// AddVersionRequest is the body of POST /evidence/{id}/versions. Both fields
// are optional; an omitted field is stored as null on the version.
type AddVersionRequest struct {
	Notes  *string `json:"notes,omitempty"`
	Expiry *string `json:"expiry,omitempty"`

	expiry *id.Date
}

func (r *AddVersionRequest) Normalize() {
	if r.Notes != nil {
		trimmed := strings.TrimSpace(*r.Notes)
		r.Notes = &trimmed
	}
	if r.Expiry != nil {
		trimmed := strings.TrimSpace(*r.Expiry)
		if trimmed == "" {
			r.Expiry = nil
		} else {
			r.Expiry = &trimmed
		}
	}
}

func (r *AddVersionRequest) Validate() error {
	if r.Notes != nil && utf8.RuneCountInString(*r.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes are too long")
	}
	if r.Expiry != nil {
		expiry, err := id.ParseDate(*r.Expiry)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "expiry must be a date (YYYY-MM-DD or RFC 3339)")
		}
		r.expiry = &expiry
	}
	return nil
}

func (r *AddVersionRequest) Input() AddVersionInput {
	return AddVersionInput{Notes: r.Notes, Expiry: r.expiry}
}

// DeleteResponse is returned by DELETE /evidence/{id}.
type DeleteResponse struct {
	Message string `json:"message"`
}

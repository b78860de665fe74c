package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	dErrors "compliancehub/pkg/domain-errors"
)

// Typed identifiers keep entity IDs from being passed where another kind is
// expected. All UUID-backed IDs share parseUUID so validation is identical.
type (
	UserID       uuid.UUID
	EvidenceID   uuid.UUID
	VersionID    uuid.UUID
	RequestID    uuid.UUID
	ItemID       uuid.UUID
	AuditEntryID uuid.UUID
)

// FactoryID is the tenant key. Factories are identified by an external code
// (e.g. "F001") rather than a UUID.
type FactoryID string

const maxFactoryIDLength = 64

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

func ParseEvidenceID(s string) (EvidenceID, error) {
	u, err := parseUUID(s, "evidence ID")
	return EvidenceID(u), err
}

func ParseVersionID(s string) (VersionID, error) {
	u, err := parseUUID(s, "version ID")
	return VersionID(u), err
}

func ParseRequestID(s string) (RequestID, error) {
	u, err := parseUUID(s, "request ID")
	return RequestID(u), err
}

func ParseItemID(s string) (ItemID, error) {
	u, err := parseUUID(s, "item ID")
	return ItemID(u), err
}

// ParseFactoryID accepts a trimmed, printable code of at most 64 characters.
func ParseFactoryID(s string) (FactoryID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "factory ID is required")
	}
	if len(s) > maxFactoryIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "factory ID is too long")
	}
	for _, r := range s {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid factory ID")
		}
	}
	return FactoryID(s), nil
}

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id EvidenceID) String() string   { return uuid.UUID(id).String() }
func (id VersionID) String() string    { return uuid.UUID(id).String() }
func (id RequestID) String() string    { return uuid.UUID(id).String() }
func (id ItemID) String() string       { return uuid.UUID(id).String() }
func (id AuditEntryID) String() string { return uuid.UUID(id).String() }
func (id FactoryID) String() string    { return string(id) }

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id EvidenceID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id VersionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ItemID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id AuditEntryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id FactoryID) IsZero() bool   { return id == "" }

// MarshalText lets typed IDs serialise as plain UUID strings in JSON bodies
// and audit metadata.
func (id UserID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id EvidenceID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id VersionID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id RequestID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id ItemID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id AuditEntryID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EvidenceID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *VersionID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RequestID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ItemID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AuditEntryID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func NewEvidenceID() EvidenceID     { return EvidenceID(uuid.New()) }
func NewVersionID() VersionID       { return VersionID(uuid.New()) }
func NewRequestID() RequestID       { return RequestID(uuid.New()) }
func NewItemID() ItemID             { return ItemID(uuid.New()) }
func NewUserID() UserID             { return UserID(uuid.New()) }
func NewAuditEntryID() AuditEntryID { return AuditEntryID(uuid.New()) }

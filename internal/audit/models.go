// Package audit is the append-only ledger of security-relevant actions.
//
// Workflow components record an entry inside the same transaction as the
// change it describes; if the entry cannot be written the whole unit of work
// fails. Entries are never updated or deleted.
package audit

import (
	"encoding/json"
	"time"

	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
)

// Action is the kind of change an entry records.
type Action string

const (
	ActionCreateEvidence Action = "CREATE_EVIDENCE"
	ActionAddVersion     Action = "ADD_VERSION"
	ActionDeleteEvidence Action = "DELETE_EVIDENCE"
	ActionCreateRequest  Action = "CREATE_REQUEST"
	ActionFulfillItem    Action = "FULFILL_ITEM"
	ActionViewRequests   Action = "VIEW_REQUESTS"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionCreateEvidence, ActionAddVersion, ActionDeleteEvidence,
		ActionCreateRequest, ActionFulfillItem, ActionViewRequests:
		return true
	}
	return false
}

// ObjectType names the kind of object an entry refers to.
type ObjectType string

const (
	ObjectEvidence    ObjectType = "Evidence"
	ObjectVersion     ObjectType = "Version"
	ObjectRequest     ObjectType = "Request"
	ObjectRequestItem ObjectType = "RequestItem"
)

func (o ObjectType) IsValid() bool {
	switch o {
	case ObjectEvidence, ObjectVersion, ObjectRequest, ObjectRequestItem:
		return true
	}
	return false
}

// Entry is one ledger row. Metadata always round-trips through JSON, so
// numbers read back as float64 on every backend.
type Entry struct {
	ID          id.AuditEntryID `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	ActorUserID id.UserID       `json:"actorUserId"`
	ActorRole   id.Role         `json:"actorRole"`
	Action      Action          `json:"action"`
	ObjectType  ObjectType      `json:"objectType"`
	ObjectID    string          `json:"objectId"`
	Metadata    map[string]any  `json:"metadata"`
}

// Record is what a component asks the ledger to write.
type Record struct {
	ActorUserID id.UserID
	ActorRole   id.Role
	Action      Action
	ObjectType  ObjectType
	ObjectID    string
	Metadata    map[string]any
}

func (r Record) validate() error {
	if r.ActorUserID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "audit record requires an actor")
	}
	if !r.Action.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "audit record has unknown action "+string(r.Action))
	}
	if !r.ObjectType.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "audit record has unknown object type "+string(r.ObjectType))
	}
	if r.ObjectID == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "audit record requires an object id")
	}
	return nil
}

// Filter narrows Query. Empty fields match everything; set fields are ANDed.
type Filter struct {
	Action      Action
	ObjectType  ObjectType
	ActorUserID id.UserID
}

// Matches reports whether e passes every set field of f.
func (f Filter) Matches(e *Entry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ObjectType != "" && e.ObjectType != f.ObjectType {
		return false
	}
	if !f.ActorUserID.IsNil() && e.ActorUserID != f.ActorUserID {
		return false
	}
	return true
}

// EncodeMetadata renders metadata as a JSON object; nil becomes {}.
func EncodeMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// DecodeMetadata parses a stored JSON object.
func DecodeMetadata(b []byte) (map[string]any, error) {
	m := map[string]any{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// OutboxMessage is an entry waiting to be exported to the audit topic.
type OutboxMessage struct {
	ID        string
	EntryID   id.AuditEntryID
	Action    Action
	Payload   []byte
	CreatedAt time.Time
}

package store

import (
	"encoding/json"
	"fmt"

	"compliancehub/internal/audit"
)

// encodePayload is the outbox message body: the entry as the API returns it.
func encodePayload(e *audit.Entry) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal audit payload: %w", err)
	}
	return b, nil
}

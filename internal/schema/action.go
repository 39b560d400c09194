package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action methods. These map one-to-one onto the HTTP verbs the drain
// issues against the CRM API.
const (
	MethodCreate = "create"
	MethodUpdate = "update"
	MethodDelete = "delete"
)

// Resource types a pending action can target.
const (
	ResourceContato       = "contato"
	ResourceProcesso      = "processo"
	ResourceConfiguracoes = "configuracoes"
)

// PendingAction is a locally queued mutation not yet confirmed by the server.
//
// Actions are created whenever a mutation is performed while the API is
// unreachable (or before the server acknowledges it), and removed only on a
// confirmed server ack. A failed attempt keeps the action in place with an
// incremented RetryCount and the last error recorded.
type PendingAction struct {
	// ID is a UUID assigned at enqueue time. It doubles as the
	// idempotency key sent with the replayed request.
	ID string `json:"id"`

	Method       string `json:"method"`        // create, update, delete
	ResourceType string `json:"resource_type"` // contato, processo, configuracoes

	// ResourceID is set for update/delete; empty for create.
	ResourceID string `json:"resource_id,omitempty"`

	// Payload is the JSON request body. Empty for delete.
	Payload json.RawMessage `json:"payload,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	RetryCount int       `json:"retry_count"`
	LastError  string    `json:"last_error,omitempty"`
}

// Validate checks if the PendingAction has valid field values.
func (a *PendingAction) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("id is required")
	}
	switch a.Method {
	case MethodCreate, MethodUpdate, MethodDelete:
	default:
		return fmt.Errorf("method must be create, update or delete (got %q)", a.Method)
	}
	switch a.ResourceType {
	case ResourceContato, ResourceProcesso, ResourceConfiguracoes:
	default:
		return fmt.Errorf("unknown resource type %q", a.ResourceType)
	}
	if a.Method != MethodCreate && a.ResourceType != ResourceConfiguracoes && a.ResourceID == "" {
		return fmt.Errorf("resource_id is required for %s actions", a.Method)
	}
	if a.Method != MethodDelete && len(a.Payload) == 0 {
		return fmt.Errorf("payload is required for %s actions", a.Method)
	}
	if a.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	return nil
}

// DraftKey returns the local storage key for a form draft, matching the
// `${formName}_draft` convention the web client persists under.
func DraftKey(formName string) string {
	return formName + "_draft"
}

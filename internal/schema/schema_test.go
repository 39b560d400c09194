package schema

import (
	"encoding/json"
	"testing"
	"time"
)

func validAction() *PendingAction {
	return &PendingAction{
		ID:           "a1",
		Method:       MethodCreate,
		ResourceType: ResourceContato,
		Payload:      json.RawMessage(`{"nome":"Maria"}`),
		CreatedAt:    time.Now(),
	}
}

func TestPendingActionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PendingAction)
		wantErr bool
	}{
		{"valid create", func(a *PendingAction) {}, false},
		{"missing id", func(a *PendingAction) { a.ID = "" }, true},
		{"bad method", func(a *PendingAction) { a.Method = "patch" }, true},
		{"bad resource", func(a *PendingAction) { a.ResourceType = "fatura" }, true},
		{"update without resource id", func(a *PendingAction) {
			a.Method = MethodUpdate
			a.ResourceID = ""
		}, true},
		{"update with resource id", func(a *PendingAction) {
			a.Method = MethodUpdate
			a.ResourceID = "c-1"
		}, false},
		{"delete without payload", func(a *PendingAction) {
			a.Method = MethodDelete
			a.ResourceID = "c-1"
			a.Payload = nil
		}, false},
		{"create without payload", func(a *PendingAction) { a.Payload = nil }, true},
		{"configuracoes update has no resource id", func(a *PendingAction) {
			a.Method = MethodUpdate
			a.ResourceType = ResourceConfiguracoes
			a.ResourceID = ""
		}, false},
		{"zero created_at", func(a *PendingAction) { a.CreatedAt = time.Time{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAction()
			tt.mutate(a)
			err := a.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestContatoValidate(t *testing.T) {
	c := &Contato{ID: "c-1", Nome: "Maria Silva", Status: "novo"}
	if err := c.Validate(); err != nil {
		t.Errorf("valid contato rejected: %v", err)
	}

	c.Nome = ""
	if err := c.Validate(); err == nil {
		t.Error("expected error for missing nome")
	}
}

func TestProcessoValidate(t *testing.T) {
	p := &Processo{ID: "p-1", Numero: "0001234-56.2024.8.26.0100", Titulo: "Ação Trabalhista", Status: "ativo"}
	if err := p.Validate(); err != nil {
		t.Errorf("valid processo rejected: %v", err)
	}

	p.Numero = ""
	if err := p.Validate(); err == nil {
		t.Error("expected error for missing numero")
	}
}

func TestConnectionStateDisplayStatus(t *testing.T) {
	tests := []struct {
		name  string
		state ConnectionState
		want  WebSocketStatus
	}{
		{"online connected", ConnectionState{IsOnline: true, WebSocketStatus: WSConnected}, WSConnected},
		{"online erroring socket", ConnectionState{IsOnline: true, WebSocketStatus: WSError}, WSError},
		{"offline forces disconnected", ConnectionState{IsOnline: false, WebSocketStatus: WSConnected}, WSDisconnected},
		{"offline while connecting", ConnectionState{IsOnline: false, WebSocketStatus: WSConnecting}, WSDisconnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.DisplayStatus(); got != tt.want {
				t.Errorf("DisplayStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStorageQuotaExceeded(t *testing.T) {
	if (StorageQuota{Usage: 100, Quota: 0}).Exceeded() {
		t.Error("zero quota should mean unlimited")
	}
	if (StorageQuota{Usage: 99, Quota: 100}).Exceeded() {
		t.Error("under quota should not be exceeded")
	}
	if !(StorageQuota{Usage: 100, Quota: 100}).Exceeded() {
		t.Error("at quota should be exceeded")
	}
}

func TestDraftKey(t *testing.T) {
	if got := DraftKey("contato_form"); got != "contato_form_draft" {
		t.Errorf("DraftKey() = %q", got)
	}
}

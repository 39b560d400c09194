// Package schema provides the data structures shared across the lexsync agent:
// CRM entities cached locally, queued mutations, and connectivity state.
package schema

import (
	"fmt"
	"time"
)

// Contato represents a contact/lead record in the law-firm CRM.
// Fields are flat and individually updatable; UpdatedAt resolves
// last-write-wins when the live channel and a drain race.
type Contato struct {
	ID       string `json:"id"`
	Nome     string `json:"nome"`
	Email    string `json:"email,omitempty"`
	Telefone string `json:"telefone,omitempty"`

	// Origem records where the lead came from (site, indicacao, whatsapp).
	Origem string `json:"origem,omitempty"`

	// Status follows the CRM pipeline: novo, em_atendimento, convertido, arquivado.
	Status string `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the Contato has valid field values.
func (c *Contato) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.Nome == "" {
		return fmt.Errorf("nome is required")
	}
	if len(c.Nome) > 500 {
		return fmt.Errorf("nome must be 500 characters or less (got %d)", len(c.Nome))
	}
	if c.Status == "" {
		return fmt.Errorf("status is required")
	}
	return nil
}

// Processo represents a legal case/matter record.
type Processo struct {
	ID     string `json:"id"`
	Numero string `json:"numero"` // CNJ case number
	Titulo string `json:"titulo"`

	// ContatoID links the case to the client contact, when known.
	ContatoID string `json:"contato_id,omitempty"`

	// Status: ativo, suspenso, arquivado, encerrado.
	Status string `json:"status"`

	// Prazo is the next deadline for the case, if any.
	Prazo *time.Time `json:"prazo,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the Processo has valid field values.
func (p *Processo) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.Numero == "" {
		return fmt.Errorf("numero is required")
	}
	if p.Titulo == "" {
		return fmt.Errorf("titulo is required")
	}
	if p.Status == "" {
		return fmt.Errorf("status is required")
	}
	return nil
}

// Mensagem is a message exchanged with a contact, as returned by
// GET /api/contatos/:id/messages.
type Mensagem struct {
	ID        string    `json:"id"`
	ContatoID string    `json:"contato_id"`
	Conteudo  string    `json:"conteudo"`
	Direcao   string    `json:"direcao"` // recebida, enviada
	CreatedAt time.Time `json:"created_at"`
}

// Configuracoes holds the per-office settings managed through
// GET/PUT /api/configuracoes.
type Configuracoes struct {
	NomeEscritorio    string `json:"nome_escritorio"`
	EmailNotificacoes string `json:"email_notificacoes,omitempty"`
	NotificarPrazos   bool   `json:"notificar_prazos"`
	DiasAntecedencia  int    `json:"dias_antecedencia"`
}

// DashboardMetrics mirrors GET /api/dashboard/metrics.
type DashboardMetrics struct {
	TotalContatos    int `json:"total_contatos"`
	ContatosNovos    int `json:"contatos_novos"`
	ProcessosAtivos  int `json:"processos_ativos"`
	PrazosProximos   int `json:"prazos_proximos"`
}

// ChartPoint is one entry of GET /api/dashboard/chart-data.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

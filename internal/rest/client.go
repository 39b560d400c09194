// Package rest provides the HTTP client for the law-firm CRM API.
//
// All endpoints speak JSON. Success is 200/201/204; failures come back as
// HTTP 500 with an {"error": string} body. Network-level failures and API
// errors are distinguished so callers can decide between queueing for retry
// and surfacing the failure.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/escritoriolabs/lexsync/internal/schema"
)

// ErrResourceGone is returned when a queued update or delete targets a
// resource the server no longer has. Per the reconciliation policy this is
// surfaced, never auto-resolved.
var ErrResourceGone = errors.New("resource no longer exists on server")

// APIError is a structured error response from the CRM API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Client talks to the CRM REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a CRM API client.
//
// timeout bounds each individual request; contexts passed to the methods
// can cancel earlier. A zero timeout defaults to 10 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping probes API reachability. Used by the connectivity monitor as the
// network-online signal; any HTTP response (even an error status) proves
// the network path is up.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/dashboard/metrics", nil)
	if err != nil {
		return fmt.Errorf("failed to build ping request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ListContatos fetches GET /api/contatos.
func (c *Client) ListContatos(ctx context.Context) ([]*schema.Contato, error) {
	var contatos []*schema.Contato
	if err := c.do(ctx, http.MethodGet, "/api/contatos", nil, &contatos); err != nil {
		return nil, err
	}
	return contatos, nil
}

// GetContato fetches GET /api/contatos/:id.
func (c *Client) GetContato(ctx context.Context, id string) (*schema.Contato, error) {
	var contato schema.Contato
	if err := c.do(ctx, http.MethodGet, "/api/contatos/"+url.PathEscape(id), nil, &contato); err != nil {
		return nil, err
	}
	return &contato, nil
}

// CreateContato issues POST /api/contatos and returns the created record.
func (c *Client) CreateContato(ctx context.Context, contato *schema.Contato) (*schema.Contato, error) {
	var created schema.Contato
	if err := c.do(ctx, http.MethodPost, "/api/contatos", contato, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteContato issues DELETE /api/contatos/:id.
func (c *Client) DeleteContato(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/contatos/"+url.PathEscape(id), nil, nil)
}

// ListMensagens fetches GET /api/contatos/:id/messages.
func (c *Client) ListMensagens(ctx context.Context, contatoID string) ([]*schema.Mensagem, error) {
	var msgs []*schema.Mensagem
	path := "/api/contatos/" + url.PathEscape(contatoID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListProcessos fetches GET /api/processos.
func (c *Client) ListProcessos(ctx context.Context) ([]*schema.Processo, error) {
	var processos []*schema.Processo
	if err := c.do(ctx, http.MethodGet, "/api/processos", nil, &processos); err != nil {
		return nil, err
	}
	return processos, nil
}

// CreateProcesso issues POST /api/processos and returns the created record.
func (c *Client) CreateProcesso(ctx context.Context, processo *schema.Processo) (*schema.Processo, error) {
	var created schema.Processo
	if err := c.do(ctx, http.MethodPost, "/api/processos", processo, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetConfiguracoes fetches GET /api/configuracoes.
func (c *Client) GetConfiguracoes(ctx context.Context) (*schema.Configuracoes, error) {
	var cfg schema.Configuracoes
	if err := c.do(ctx, http.MethodGet, "/api/configuracoes", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpdateConfiguracoes issues PUT /api/configuracoes.
func (c *Client) UpdateConfiguracoes(ctx context.Context, cfg *schema.Configuracoes) error {
	return c.do(ctx, http.MethodPut, "/api/configuracoes", cfg, nil)
}

// DashboardMetrics fetches GET /api/dashboard/metrics.
func (c *Client) DashboardMetrics(ctx context.Context) (*schema.DashboardMetrics, error) {
	var m schema.DashboardMetrics
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/metrics", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ChartData fetches GET /api/dashboard/chart-data.
func (c *Client) ChartData(ctx context.Context) ([]*schema.ChartPoint, error) {
	var points []*schema.ChartPoint
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/chart-data", nil, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// Replay issues the HTTP request for a queued action. The action id is sent
// as an idempotency key so a retry after a lost ack does not duplicate the
// mutation server-side.
func (c *Client) Replay(ctx context.Context, action *schema.PendingAction) error {
	method, path, err := routeFor(action)
	if err != nil {
		return err
	}

	var body io.Reader
	if len(action.Payload) > 0 {
		body = bytes.NewReader(action.Payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request for action %s: %w", action.ID, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Idempotency-Key", action.ID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to replay action %s: %w", action.ID, err)
	}
	defer resp.Body.Close()

	return checkResponse(resp)
}

// RouteFor exposes the method/URL an action maps to, for progress reporting.
func (c *Client) RouteFor(action *schema.PendingAction) (method, fullURL string, err error) {
	method, path, err := routeFor(action)
	if err != nil {
		return "", "", err
	}
	return method, c.baseURL + path, nil
}

// routeFor maps a queued action onto the CRM API surface.
func routeFor(action *schema.PendingAction) (method, path string, err error) {
	switch action.ResourceType {
	case schema.ResourceContato:
		switch action.Method {
		case schema.MethodCreate:
			return http.MethodPost, "/api/contatos", nil
		case schema.MethodUpdate:
			return http.MethodPut, "/api/contatos/" + url.PathEscape(action.ResourceID), nil
		case schema.MethodDelete:
			return http.MethodDelete, "/api/contatos/" + url.PathEscape(action.ResourceID), nil
		}
	case schema.ResourceProcesso:
		switch action.Method {
		case schema.MethodCreate:
			return http.MethodPost, "/api/processos", nil
		case schema.MethodUpdate:
			return http.MethodPut, "/api/processos/" + url.PathEscape(action.ResourceID), nil
		case schema.MethodDelete:
			return http.MethodDelete, "/api/processos/" + url.PathEscape(action.ResourceID), nil
		}
	case schema.ResourceConfiguracoes:
		if action.Method == schema.MethodUpdate {
			return http.MethodPut, "/api/configuracoes", nil
		}
	}
	return "", "", fmt.Errorf("no route for %s %s", action.Method, action.ResourceType)
}

// do issues a JSON request and decodes the response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// checkResponse converts non-success statuses into typed errors.
func checkResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusNotFound, http.StatusGone:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: %w", resp.Request.Method, resp.Request.URL.Path, ErrResourceGone)
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	msg := resp.Status
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

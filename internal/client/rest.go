package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zulandar/agenthud/internal/discovery"
	"github.com/zulandar/agenthud/internal/models"
	"github.com/zulandar/agenthud/internal/protocol"
)

// ErrUnknownRequest is returned by API.Respond when the hub has no such request.
var ErrUnknownRequest = errors.New("client: unknown request")

// API is a thin client for the hub's REST endpoints.
type API struct {
	BaseURL string
	HTTP    *http.Client
}

// NewAPI returns an API for the hub on host:port.
func NewAPI(host string, port int) *API {
	if host == "" {
		host = "127.0.0.1"
	}
	return &API{
		BaseURL: "http://" + net.JoinHostPort(host, strconv.Itoa(port)),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// FindHub scans min..max for a hub and returns an API bound to it. The probe
// registers as an observer and disconnects straight away.
func FindHub(ctx context.Context, host string, min, max int, attemptTimeout time.Duration) (*API, error) {
	dialer := &WSDialer{
		Host:     host,
		Register: map[string]string{"type": protocol.TypeRegisterObserver},
	}
	scanner := &discovery.Scanner{
		Dialer:         dialer,
		MinPort:        min,
		MaxPort:        max,
		AttemptTimeout: attemptTimeout,
	}
	sess, port, err := scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	sess.Close()
	return NewAPI(host, port), nil
}

func (a *API) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("client: encode %s: %w", path, err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("client: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return resp.StatusCode, fmt.Errorf("client: %s %s: %s: %s", method, path, resp.Status, e.Error)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("client: decode %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// Agents lists connected agents.
func (a *API) Agents(ctx context.Context) ([]models.Agent, error) {
	var out []models.Agent
	_, err := a.do(ctx, http.MethodGet, "/api/agents", nil, &out)
	return out, err
}

// Requests lists requests, optionally filtered by status ("pending", "completed").
func (a *API) Requests(ctx context.Context, status string) ([]models.HumanInputRequest, error) {
	path := "/api/requests"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out []models.HumanInputRequest
	_, err := a.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Respond answers a request.
func (a *API) Respond(ctx context.Context, requestID, response, additionalContext string) error {
	body := map[string]string{"response": response}
	if additionalContext != "" {
		body["additionalContext"] = additionalContext
	}
	code, err := a.do(ctx, http.MethodPost, "/api/requests/"+url.PathEscape(requestID)+"/response", body, nil)
	if code == http.StatusNotFound {
		return fmt.Errorf("%w %s", ErrUnknownRequest, requestID)
	}
	return err
}

// ClearRequests empties the hub's request ledger.
func (a *API) ClearRequests(ctx context.Context) error {
	_, err := a.do(ctx, http.MethodDelete, "/api/requests", nil, nil)
	return err
}

// Content lists content newest first.
func (a *API) Content(ctx context.Context) ([]models.ContentItem, error) {
	var out []models.ContentItem
	_, err := a.do(ctx, http.MethodGet, "/api/content", nil, &out)
	return out, err
}

// JournalRequests lists journaled requests, newest first.
func (a *API) JournalRequests(ctx context.Context, limit int) ([]models.RequestRecord, error) {
	var out []models.RequestRecord
	_, err := a.do(ctx, http.MethodGet, "/api/journal/requests?limit="+strconv.Itoa(limit), nil, &out)
	return out, err
}

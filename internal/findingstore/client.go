package findingstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/WilBtc/sentinel-triage/internal/models"
)

// ErrUnavailable marks transport-level failures. The router pauses the
// affected tenant partition and retries; findings are never skipped.
var ErrUnavailable = errors.New("finding store unavailable")

// ErrNotFound is returned for unknown finding references
var ErrNotFound = errors.New("finding not found")

// Client talks to the external finding store's REST API. The store owns
// finding state; the pipeline only reads findings and updates
// status/annotations.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// GetFinding fetches one finding by tenant and ID
func (c *Client) GetFinding(ctx context.Context, tenantID, findingID string) (*models.Finding, error) {
	endpoint := fmt.Sprintf("%s/api/v1/tenants/%s/findings/%s",
		c.baseURL, url.PathEscape(tenantID), url.PathEscape(findingID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, tenantID, findingID)
	default:
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("unexpected status %d from finding store", resp.StatusCode)
	}

	var finding models.Finding
	if err := json.NewDecoder(resp.Body).Decode(&finding); err != nil {
		return nil, fmt.Errorf("failed to decode finding: %w", err)
	}
	return &finding, nil
}

type statusUpdate struct {
	Status     models.FindingStatus `json:"status"`
	Annotation string               `json:"annotation,omitempty"`
}

// UpdateFindingStatus moves a finding to a new lifecycle status with an
// annotation explaining the automated decision.
func (c *Client) UpdateFindingStatus(ctx context.Context, tenantID, findingID string,
	status models.FindingStatus, annotation string) error {

	endpoint := fmt.Sprintf("%s/api/v1/tenants/%s/findings/%s/status",
		c.baseURL, url.PathEscape(tenantID), url.PathEscape(findingID))

	body, err := json.Marshal(statusUpdate{Status: status, Annotation: annotation})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s/%s", ErrNotFound, tenantID, findingID)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("unexpected status %d from finding store", resp.StatusCode)
	}
}

// ListFindings queries findings for a tenant, optionally filtered by
// status. Used by the reconciler to detect terminal-state transitions.
func (c *Client) ListFindings(ctx context.Context, tenantID string, status models.FindingStatus) ([]*models.Finding, error) {
	endpoint := fmt.Sprintf("%s/api/v1/tenants/%s/findings", c.baseURL, url.PathEscape(tenantID))
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(string(status))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("unexpected status %d from finding store", resp.StatusCode)
	}

	var findings []*models.Finding
	if err := json.NewDecoder(resp.Body).Decode(&findings); err != nil {
		return nil, fmt.Errorf("failed to decode findings: %w", err)
	}
	return findings, nil
}

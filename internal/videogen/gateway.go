package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/domain"
)

// Remote job states as the gateway reports them.
const (
	RemotePending   = "PENDING"
	RemoteRunning   = "RUNNING"
	RemoteSucceeded = "SUCCEEDED"
	RemoteFailed    = "FAILED"
)

// SubmitRequest carries the job parameters forwarded to the gateway.
type SubmitRequest struct {
	Prompt             string `json:"prompt"`
	ImageReference     string `json:"image_reference,omitempty"`
	Duration           int    `json:"duration,omitempty"`
	AspectRatio        string `json:"aspect_ratio,omitempty"`
	AssociatedRecordID string `json:"associated_record_id,omitempty"`
}

// SubmitResponse is the gateway's acknowledgement of a queued job.
type SubmitResponse struct {
	JobID         string `json:"job_id"`
	EstimatedTime string `json:"estimated_time"`
}

// StatusResponse is one decoded status check.
type StatusResponse struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	VideoURL string `json:"video_url"`
	Failure  string `json:"failure"`
}

// Gateway is the external job execution service.
type Gateway interface {
	SubmitJob(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)
	CheckStatus(ctx context.Context, jobID string) (*StatusResponse, error)
}

// HTTPGateway talks to the hosted generation gateway over HTTPS with a
// bearer credential.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewHTTPGateway(baseURL, apiKey string, httpClient *http.Client, logger zerolog.Logger) *HTTPGateway {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

type gatewayError struct {
	Error           string `json:"error"`
	RequiresUpgrade bool   `json:"requires_upgrade"`
}

// SubmitJob forwards the job parameters. An HTTP 403 carrying
// requires_upgrade is surfaced as a domain.UpgradeRequiredError so callers
// can distinguish entitlement rejection from transport failure.
func (g *HTTPGateway) SubmitJob(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := g.invoke(ctx, "/videos/generate", req, &resp); err != nil {
		return nil, err
	}
	if resp.JobID == "" {
		return nil, fmt.Errorf("gateway returned empty job id: %w", domain.ErrProviderFailure)
	}
	return &resp, nil
}

type statusRequest struct {
	Action string `json:"action"`
	JobID  string `json:"job_id"`
}

// CheckStatus performs one status check. It has no side effects on tracker
// state and is callable directly.
func (g *HTTPGateway) CheckStatus(ctx context.Context, jobID string) (*StatusResponse, error) {
	var resp StatusResponse
	if err := g.invoke(ctx, "/videos/status", statusRequest{Action: "check_status", JobID: jobID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *HTTPGateway) invoke(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr gatewayError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil {
			// The upgrade flag alone decides the mapping; the message is
			// optional and UpgradeRequiredError supplies a default.
			if resp.StatusCode == http.StatusForbidden && apiErr.RequiresUpgrade {
				return &domain.UpgradeRequiredError{Message: apiErr.Error}
			}
			if apiErr.Error != "" {
				return fmt.Errorf("gateway status %d: %s", resp.StatusCode, apiErr.Error)
			}
		}
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			return fmt.Errorf("gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("gateway status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

var _ Gateway = (*HTTPGateway)(nil)

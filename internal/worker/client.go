// Package worker implements the pipeline executor against a remote browser
// worker service, for deployments where Chrome runs in its own container.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/idtoken"

	"github.com/augustalabs/summit-outreach/internal/entity"
	"github.com/augustalabs/summit-outreach/internal/pipeline"
)

// Client posts JSON payloads to worker endpoints.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient builds a worker client, auto-configuring an ID token client when
// needed.
func NewClient(client *http.Client, baseURL string) *Client {
	if baseURL == "" {
		panic("worker baseURL must not be empty")
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if client == nil {
		idc, err := idtoken.NewClient(context.Background(), baseURL)
		if err != nil {
			client = &http.Client{Timeout: 90 * time.Second}
		} else {
			client = idc
		}
	}
	return &Client{client: client, baseURL: baseURL}
}

type profilePayload struct {
	ProfileID  string `json:"profile_id,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
	Message    string `json:"message,omitempty"`
	Page       int    `json:"page,omitempty"`
}

type workerEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// NextPage asks the worker for the profile links visible after the page'th
// listing pass.
func (c *Client) NextPage(ctx context.Context, page int) ([]pipeline.ProfileRef, error) {
	data, err := c.post(ctx, "/discover", profilePayload{Page: page}, pipeline.StepDiscover)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Profiles []pipeline.ProfileRef `json:"profiles"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, pipeline.Transient(pipeline.StepDiscover, fmt.Errorf("decode worker listing: %w", err))
	}
	return payload.Profiles, nil
}

// Extract asks the worker to load the profile page and return its
// attributes.
func (c *Client) Extract(ctx context.Context, ref pipeline.ProfileRef) (entity.Profile, error) {
	data, err := c.post(ctx, "/extract", profilePayload{
		ProfileID:  ref.ProfileID,
		ProfileURL: ref.ProfileURL,
	}, pipeline.StepExtract)
	if err != nil {
		return entity.Profile{}, err
	}

	var profile entity.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return entity.Profile{}, pipeline.Transient(pipeline.StepExtract, fmt.Errorf("decode worker profile: %w", err))
	}
	return profile, nil
}

// Act asks the worker to drive the meeting request flow with the composed
// message.
func (c *Client) Act(ctx context.Context, ref pipeline.ProfileRef, message string) error {
	_, err := c.post(ctx, "/act", profilePayload{
		ProfileID:  ref.ProfileID,
		ProfileURL: ref.ProfileURL,
		Message:    message,
	}, pipeline.StepAct)
	return err
}

func (c *Client) post(ctx context.Context, path string, payload profilePayload, step pipeline.Step) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pipeline.PermanentFailure(step, fmt.Errorf("marshal worker payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, pipeline.PermanentFailure(step, fmt.Errorf("create worker request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pipeline.Transient(step, fmt.Errorf("worker request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := extractWorkerError(resp.Body)
		err := fmt.Errorf("worker returned %d: %s", resp.StatusCode, msg)
		if permanentStatus(resp.StatusCode) {
			return nil, pipeline.PermanentFailure(step, err)
		}
		return nil, pipeline.Transient(step, err)
	}

	var envelope workerEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil && err != io.EOF {
		return nil, pipeline.Transient(step, fmt.Errorf("decode worker response: %w", err))
	}
	if envelope.Error != "" {
		return nil, pipeline.Transient(step, fmt.Errorf("worker error: %s", envelope.Error))
	}
	return envelope.Data, nil
}

// permanentStatus reports whether the worker's status describes a condition
// of the entity itself rather than of this attempt. Rate limiting and
// timeouts stay retryable.
func permanentStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return code >= 400 && code < 500
}

func extractWorkerError(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no error detail"
	}
	var envelope workerEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	return strings.TrimSpace(string(raw))
}

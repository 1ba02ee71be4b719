package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/augustalabs/summit-outreach/internal/pipeline"
)

func testRef() pipeline.ProfileRef {
	return pipeline.ProfileRef{
		ProfileID:  "abc123",
		ProfileURL: "https://attend.example.com/ev25/profiles/abc123",
	}
}

func TestExtract(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"name":     "Ada Lovelace",
				"company":  "Analytical Engines",
				"industry": "Software",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL)
	profile, err := client.Extract(context.Background(), testRef())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/extract" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotPayload["profile_id"] != "abc123" {
		t.Fatalf("unexpected payload: %v", gotPayload)
	}
	if profile.Name != "Ada Lovelace" || profile.Company != "Analytical Engines" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestNextPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/discover" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["page"] != float64(2) {
			t.Errorf("unexpected payload: %v", payload)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"profiles": []map[string]string{
					{"profile_id": "a1", "profile_url": "https://attend.example.com/ev25/profiles/a1"},
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL)
	refs, err := client.NextPage(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 || refs[0].ProfileID != "a1" {
		t.Fatalf("unexpected refs: %+v", refs)
	}
}

func TestActSendsMessage(t *testing.T) {
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/act" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"sent": true}})
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL)
	if err := client.Act(context.Background(), testRef(), "Dear Ada"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPayload["message"] != "Dear Ada" {
		t.Fatalf("message missing from payload: %v", gotPayload)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{"not found is permanent", http.StatusNotFound, true},
		{"conflict is permanent", http.StatusConflict, true},
		{"rate limited is retryable", http.StatusTooManyRequests, false},
		{"server error is retryable", http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{"error": "request button disabled"})
			}))
			defer server.Close()

			client := NewClient(server.Client(), server.URL)
			err := client.Act(context.Background(), testRef(), "Dear Ada")
			if err == nil {
				t.Fatal("expected an error")
			}
			var failure *pipeline.Failure
			if !errors.As(err, &failure) {
				t.Fatalf("expected a classified failure, got %T: %v", err, err)
			}
			if failure.Permanent != tt.permanent {
				t.Fatalf("expected permanent=%t, got %v", tt.permanent, failure)
			}
		})
	}
}

func TestWorkerEnvelopeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "session expired"})
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL)
	_, err := client.Extract(context.Background(), testRef())
	if err == nil {
		t.Fatal("expected an error")
	}
	var failure *pipeline.Failure
	if !errors.As(err, &failure) || failure.Permanent {
		t.Fatalf("envelope errors must be retryable, got %v", err)
	}
}

func TestNewClientTrimsBaseURL(t *testing.T) {
	client := NewClient(&http.Client{}, "https://worker.example.com/")
	if client.baseURL != "https://worker.example.com" {
		t.Fatalf("unexpected base URL %q", client.baseURL)
	}

	t.Run("empty base URL panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected a panic")
			}
		}()
		NewClient(&http.Client{}, "")
	})
}

package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/google/go-cmp/cmp"
)

func testSummary() domain.Summary {
	intel := domain.NewArtifactSet()
	intel.PaymentIDs = []string{"user@paytm"}
	return domain.Summary{
		SessionID:              "sess-1",
		ScamDetected:           true,
		TotalMessagesExchanged: 8,
		ExtractedIntelligence:  intel,
		AgentNotes:             "Requested UPI payments",
		ScamConfidence:         0.9,
	}
}

func TestCallbackClientPostsPayload(t *testing.T) {
	var got map[string]any
	var deliveryID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		deliveryID = r.Header.Get("X-Delivery-ID")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewCallbackClient(srv.URL, time.Second, nil)
	if err := c.Report(context.Background(), testSummary()); err != nil {
		t.Fatalf("Report: %v", err)
	}

	if deliveryID == "" {
		t.Error("missing X-Delivery-ID header")
	}
	want := map[string]any{
		"sessionId":              "sess-1",
		"scamDetected":           true,
		"totalMessagesExchanged": float64(8),
		"agentNotes":             "Requested UPI payments",
		"extractedIntelligence": map[string]any{
			"upiIds":             []any{"user@paytm"},
			"phoneNumbers":       []any{},
			"phishingLinks":      []any{},
			"bankAccounts":       []any{},
			"suspiciousKeywords": []any{},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestCallbackClientRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewCallbackClient(srv.URL, time.Second, nil).Report(context.Background(), testSummary())
	if !errors.Is(err, errReportRejected) {
		t.Fatalf("err = %v, want errReportRejected", err)
	}
}

func TestCallbackClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	err := NewCallbackClient(srv.URL, 50*time.Millisecond, nil).Report(context.Background(), testSummary())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Report took %v, timeout not applied", elapsed)
	}
}

func TestLogReporterSucceeds(t *testing.T) {
	if err := NewLogReporter(nil).Report(context.Background(), testSummary()); err != nil {
		t.Fatalf("Report: %v", err)
	}
}

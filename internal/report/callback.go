// Package report delivers completed session summaries to the evaluation endpoint.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/google/uuid"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a rejected response body is kept for logs.
const maxErrorBody = 512

var errReportRejected = errors.New("report rejected")

// payload is the wire shape expected by the evaluation endpoint.
type payload struct {
	SessionID              string             `json:"sessionId"`
	ScamDetected           bool               `json:"scamDetected"`
	TotalMessagesExchanged int                `json:"totalMessagesExchanged"`
	ExtractedIntelligence  domain.ArtifactSet `json:"extractedIntelligence"`
	AgentNotes             string             `json:"agentNotes"`
}

// CallbackClient posts summaries as JSON to a fixed URL. Delivery is best
// effort: one attempt, no retry.
type CallbackClient struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// NewCallbackClient creates a client for url. A non-positive timeout uses DefaultTimeout.
func NewCallbackClient(url string, timeout time.Duration, logger *slog.Logger) *CallbackClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     logger,
	}
}

// Report sends summary and returns an error for network failures, timeouts
// and non-2xx responses.
func (c *CallbackClient) Report(ctx context.Context, summary domain.Summary) error {
	body, err := json.Marshal(payload{
		SessionID:              summary.SessionID,
		ScamDetected:           summary.ScamDetected,
		TotalMessagesExchanged: summary.TotalMessagesExchanged,
		ExtractedIntelligence:  summary.ExtractedIntelligence,
		AgentNotes:             summary.AgentNotes,
	})
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating report request: %w", err)
	}
	deliveryID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-ID", deliveryID)

	c.logger.Info("Sending session report",
		"session_id", summary.SessionID,
		"delivery_id", deliveryID,
		"total_messages", summary.TotalMessagesExchanged)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: HTTP %d: %s", errReportRejected, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// LogReporter only logs summaries. It is used when no callback URL is configured.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger}
}

// Report logs summary and always succeeds.
func (r *LogReporter) Report(_ context.Context, summary domain.Summary) error {
	r.logger.Info("Session report (no callback configured)",
		"session_id", summary.SessionID,
		"scam_detected", summary.ScamDetected,
		"total_messages", summary.TotalMessagesExchanged,
		"scam_confidence", summary.ScamConfidence,
		"risk_level", summary.RiskLevel,
		"engagement_score", summary.EngagementScore,
		"duration", summary.Duration,
		"agent_notes", summary.AgentNotes)
	return nil
}

// Package engage runs the per-turn decoy pipeline: score, extract, reply,
// record and, once enough signal is gathered, report.
package engage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/decoy/internal/detector"
	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/extractor"
	"github.com/ashureev/decoy/internal/session"
)

// NeutralReply is sent when the inbound message is not classified as fraud.
const NeutralReply = "Okay."

// DefaultReportTimeout bounds delivery of a completion report.
const DefaultReportTimeout = 10 * time.Second

const (
	reportAfterMessages     = 8
	reportAfterConfident    = 4
	reportConfidenceTrigger = 0.8
	logTextLimit            = 100
)

var (
	// ErrEmptySessionID is returned for turns without a session ID.
	ErrEmptySessionID = errors.New("session id is required")
	// ErrInvalidSender is returned for messages whose sender is not scammer or user.
	ErrInvalidSender = errors.New("sender must be scammer or user")
)

// Reporter delivers a completion summary to the evaluation collaborator.
type Reporter interface {
	Report(ctx context.Context, summary domain.Summary) error
}

// ReplySelector picks the decoy's next reply for a conversation.
type ReplySelector interface {
	SelectReply(history []domain.Message) string
}

// EventSink receives engagement events, e.g. for the operator feed.
type EventSink interface {
	Publish(eventType, sessionID string, data map[string]any)
}

// Event types emitted to the EventSink.
const (
	EventTurn         = "turn"
	EventReportSent   = "report_sent"
	EventReportFailed = "report_failed"
)

// Turn is one inbound message plus optional prior history.
type Turn struct {
	SessionID string
	Message   domain.Message
	History   []domain.Message
	Metadata  *domain.Metadata
}

// Result is what the caller sends back to the correspondent.
type Result struct {
	Reply        string
	ScamDetected bool
	Confidence   float64
	Reported     bool
}

// Service orchestrates a turn across the scorer, extractor, selector and store.
type Service struct {
	store         *session.Store
	selector      ReplySelector
	reporter      Reporter
	sink          EventSink
	reportTimeout time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEventSink publishes turn and report events to sink.
func WithEventSink(sink EventSink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithReportTimeout overrides DefaultReportTimeout.
func WithReportTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.reportTimeout = d
		}
	}
}

// WithClock replaces time.Now for agent reply timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService wires the pipeline. store, selector and reporter are required.
func NewService(store *session.Store, selector ReplySelector, reporter Reporter, opts ...Option) *Service {
	s := &Service{
		store:         store,
		selector:      selector,
		reporter:      reporter,
		reportTimeout: DefaultReportTimeout,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShouldReport is the completion predicate evaluated after every fraud turn.
func ShouldReport(totalMessages int, confidence float64, completed bool) bool {
	if completed {
		return false
	}
	return totalMessages >= reportAfterMessages ||
		(confidence >= reportConfidenceTrigger && totalMessages >= reportAfterConfident)
}

// HandleTurn processes one inbound message. Report delivery failures are
// logged and never returned; the only errors are for invalid turns.
func (s *Service) HandleTurn(ctx context.Context, turn Turn) (Result, error) {
	if turn.SessionID == "" {
		return Result{}, ErrEmptySessionID
	}
	if !turn.Message.Sender.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidSender, turn.Message.Sender)
	}

	logger := s.logger.With("session_id", turn.SessionID)
	if turn.Metadata != nil && turn.Metadata.Channel != "" {
		logger = logger.With("channel", turn.Metadata.Channel)
	}
	logger.Info("Processing message", "text", truncate(turn.Message.Text, logTextLimit))

	score := detector.Score(turn.Message.Text)
	res := Result{
		Reply:        NeutralReply,
		ScamDetected: score.IsFraud,
		Confidence:   score.Confidence,
	}

	var (
		summary domain.Summary
		report  bool
		total   int
		stage   int
	)
	err := s.store.Do(turn.SessionID, func(tx *session.Tx) error {
		if tx.TotalMessages() == 0 {
			seedHistory(tx, turn.History)
		}

		if !score.IsFraud {
			tx.RecordTurn(turn.Message, false, score.Confidence)
			total, stage = tx.TotalMessages(), tx.Stage()
			return nil
		}

		tx.MergeArtifacts(extractor.Extract(turn.Message.Text))
		tx.MergeArtifacts(domain.ArtifactSet{SuspiciousKeywords: score.Tags})

		history := append(tx.History(), turn.Message)
		res.Reply = s.selector.SelectReply(history)

		tx.RecordTurn(turn.Message, true, score.Confidence)
		tx.RecordTurn(domain.Message{
			Sender:    domain.SenderUser,
			Text:      res.Reply,
			Timestamp: s.now().UnixMilli(),
		}, false, 0)

		total = tx.TotalMessages()
		stage = tx.Stage()
		if ShouldReport(total, score.Confidence, tx.Completed()) && tx.ClaimReport() {
			summary = tx.Summarize()
			report = true
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("recording turn: %w", err)
	}

	if score.IsFraud {
		logger.Info("Scam detected", "confidence", score.Confidence, "tags", score.Tags)
	} else {
		logger.Info("No scam detected", "confidence", score.Confidence)
	}
	s.publish(EventTurn, turn.SessionID, map[string]any{
		"scamDetected":  score.IsFraud,
		"confidence":    score.Confidence,
		"totalMessages": total,
		"stage":         stage,
	})

	if report {
		s.deliver(ctx, summary)
		res.Reported = true
	}
	return res, nil
}

// deliver sends the summary without holding the session lock, then marks the
// session completed whatever the outcome.
func (s *Service) deliver(ctx context.Context, summary domain.Summary) {
	logger := s.logger.With("session_id", summary.SessionID)
	logger.Info("Sending final report", "total_messages", summary.TotalMessagesExchanged)

	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.reportTimeout)
	defer cancel()

	if err := s.reporter.Report(reportCtx, summary); err != nil {
		logger.Error("Failed to deliver report", "error", err)
		s.publish(EventReportFailed, summary.SessionID, map[string]any{"error": err.Error()})
	} else {
		logger.Info("Report delivered")
		s.publish(EventReportSent, summary.SessionID, map[string]any{
			"totalMessages": summary.TotalMessagesExchanged,
			"agentNotes":    summary.AgentNotes,
		})
	}

	s.store.MarkCompleted(summary.SessionID)
}

// Stats returns aggregate counts across live sessions.
func (s *Service) Stats() domain.Stats {
	return s.store.Stats()
}

func (s *Service) publish(eventType, sessionID string, data map[string]any) {
	if s.sink != nil {
		s.sink.Publish(eventType, sessionID, data)
	}
}

// seedHistory records caller-supplied prior messages into an empty session,
// so stage derivation reflects a conversation that began before this process
// saw it.
func seedHistory(tx *session.Tx, history []domain.Message) {
	for _, m := range history {
		if !m.Sender.Valid() {
			continue
		}
		tx.RecordTurn(m, false, 0)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

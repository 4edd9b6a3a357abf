package engage

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/responder"
	"github.com/ashureev/decoy/internal/session"
)

const (
	highConfidenceText = "URGENT: Your account will be blocked. Verify immediately."
	midConfidenceText  = "Verify your bank account"
)

type fakeReporter struct {
	mu        sync.Mutex
	summaries []domain.Summary
	err       error
	delay     time.Duration
}

func (f *fakeReporter) Report(ctx context.Context, summary domain.Summary) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summary)
	return f.err
}

func (f *fakeReporter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.summaries)
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) Publish(eventType, _ string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

type panicOnceSelector struct {
	mu       sync.Mutex
	panicked bool
}

func (p *panicOnceSelector) SelectReply([]domain.Message) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.panicked {
		p.panicked = true
		panic("selector fault")
	}
	return "Which bank is this?"
}

func newTestService(rep Reporter, opts ...Option) (*Service, *session.Store) {
	store := session.NewStore()
	return NewService(store, responder.New(responder.NewSource(1)), rep, opts...), store
}

func scamTurn(id, text string) Turn {
	return Turn{
		SessionID: id,
		Message:   domain.Message{Sender: domain.SenderScammer, Text: text, Timestamp: time.Now().UnixMilli()},
	}
}

func TestHandleTurnLegitimateMessage(t *testing.T) {
	rep := &fakeReporter{}
	svc, store := newTestService(rep)

	res, err := svc.HandleTurn(context.Background(), scamTurn("s1", "Hi, how are you doing today?"))
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if res.ScamDetected || res.Confidence >= 0.4 || res.Reply != NeutralReply {
		t.Errorf("unexpected result %+v", res)
	}

	got := store.GetOrCreate("s1")
	if got.TotalMessages() != 1 || got.ScamDetected || !got.Intelligence.IsEmpty() {
		t.Errorf("legit turn should be recorded without extraction: %+v", got)
	}
}

func TestHandleTurnScamExtractsAndReplies(t *testing.T) {
	svc, store := newTestService(&fakeReporter{})

	res, err := svc.HandleTurn(context.Background(),
		scamTurn("s1", "URGENT: your account is blocked. Pay to user@paytm or call +919876543210"))
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if !res.ScamDetected || res.Reply == "" || res.Reply == NeutralReply {
		t.Fatalf("unexpected result %+v", res)
	}

	got := store.GetOrCreate("s1")
	if !slices.Contains(got.Intelligence.PaymentIDs, "user@paytm") {
		t.Errorf("PaymentIDs = %v", got.Intelligence.PaymentIDs)
	}
	if !slices.Contains(got.Intelligence.PhoneNumbers, "+919876543210") {
		t.Errorf("PhoneNumbers = %v", got.Intelligence.PhoneNumbers)
	}
	if !slices.Contains(got.Intelligence.SuspiciousKeywords, "urgency_tactic") {
		t.Errorf("scorer tags not merged: %v", got.Intelligence.SuspiciousKeywords)
	}
	if got.TotalMessages() != 2 || got.AgentMessages != 1 || got.ScammerMessages != 1 {
		t.Errorf("expected inbound and reply recorded: %+v", got)
	}
	if got.Messages[1].Text != res.Reply {
		t.Errorf("recorded reply %q, returned %q", got.Messages[1].Text, res.Reply)
	}
}

func TestHandleTurnReportsOnHighConfidence(t *testing.T) {
	rep := &fakeReporter{}
	sink := &recordingSink{}
	svc, store := newTestService(rep, WithEventSink(sink))
	ctx := context.Background()

	for i, wantReported := range []bool{false, true, false, false, false} {
		res, err := svc.HandleTurn(ctx, scamTurn("s1", highConfidenceText))
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
		if res.Reported != wantReported {
			t.Errorf("turn %d Reported = %v, want %v", i, res.Reported, wantReported)
		}
	}

	if rep.calls() != 1 {
		t.Fatalf("reporter called %d times, want 1", rep.calls())
	}
	if got := rep.summaries[0].TotalMessagesExchanged; got != 4 {
		t.Errorf("reported TotalMessagesExchanged = %d, want 4", got)
	}
	if !store.GetOrCreate("s1").Completed {
		t.Error("session not marked completed")
	}
	if !slices.Contains(sink.events, EventReportSent) {
		t.Errorf("events = %v, want %q", sink.events, EventReportSent)
	}
}

func TestHandleTurnReportsAfterEightMessages(t *testing.T) {
	rep := &fakeReporter{}
	svc, _ := newTestService(rep)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		res, err := svc.HandleTurn(ctx, scamTurn("s1", midConfidenceText))
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
		if res.Confidence >= 0.8 || !res.ScamDetected {
			t.Fatalf("fixture confidence %.2f not in [0.4, 0.8)", res.Confidence)
		}
		if want := i == 3; res.Reported != want {
			t.Errorf("turn %d Reported = %v, want %v", i, res.Reported, want)
		}
	}
	if rep.calls() != 1 {
		t.Errorf("reporter called %d times, want 1", rep.calls())
	}
}

func TestHandleTurnReportFailureStillCompletes(t *testing.T) {
	rep := &fakeReporter{err: errors.New("connection refused")}
	sink := &recordingSink{}
	svc, store := newTestService(rep, WithEventSink(sink))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.HandleTurn(ctx, scamTurn("s1", highConfidenceText)); err != nil {
			t.Fatalf("turn %d returned error %v, want failure swallowed", i, err)
		}
	}

	got := store.GetOrCreate("s1")
	if !got.Completed || !got.ScamDetected {
		t.Errorf("state after failed report: %+v", got)
	}
	if !slices.Contains(sink.events, EventReportFailed) {
		t.Errorf("events = %v, want %q", sink.events, EventReportFailed)
	}

	if _, err := svc.HandleTurn(ctx, scamTurn("s1", highConfidenceText)); err != nil {
		t.Fatal(err)
	}
	if rep.calls() != 1 {
		t.Errorf("reporter called %d times after failure, want 1", rep.calls())
	}
}

func TestHandleTurnReportTimeout(t *testing.T) {
	rep := &fakeReporter{delay: time.Second}
	svc, store := newTestService(rep, WithReportTimeout(20*time.Millisecond))
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := svc.HandleTurn(ctx, scamTurn("s1", highConfidenceText)); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("turns took %v, report timeout not applied", elapsed)
	}
	if !store.GetOrCreate("s1").Completed {
		t.Error("session not completed after timed-out report")
	}
}

func TestHandleTurnConcurrentReportsOnce(t *testing.T) {
	rep := &fakeReporter{delay: 20 * time.Millisecond}
	svc, _ := newTestService(rep)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.HandleTurn(ctx, scamTurn("shared", highConfidenceText)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if rep.calls() != 1 {
		t.Errorf("reporter called %d times, want 1", rep.calls())
	}
}

func TestHandleTurnSeedsHistory(t *testing.T) {
	svc, store := newTestService(&fakeReporter{})
	turn := scamTurn("s1", midConfidenceText)
	turn.History = []domain.Message{
		{Sender: domain.SenderScammer, Text: "Hello sir", Timestamp: 1},
		{Sender: domain.SenderUser, Text: "Who is this?", Timestamp: 2},
		{Sender: "bot", Text: "ignored", Timestamp: 3},
	}

	if _, err := svc.HandleTurn(context.Background(), turn); err != nil {
		t.Fatal(err)
	}
	got := store.GetOrCreate("s1")
	if got.TotalMessages() != 4 {
		t.Fatalf("TotalMessages = %d, want 4 (2 seeded + inbound + reply)", got.TotalMessages())
	}

	// History is only seeded into empty sessions.
	if _, err := svc.HandleTurn(context.Background(), turn); err != nil {
		t.Fatal(err)
	}
	if got := store.GetOrCreate("s1").TotalMessages(); got != 6 {
		t.Errorf("TotalMessages = %d, want 6", got)
	}
}

func TestHandleTurnValidation(t *testing.T) {
	svc, _ := newTestService(&fakeReporter{})

	if _, err := svc.HandleTurn(context.Background(), Turn{}); !errors.Is(err, ErrEmptySessionID) {
		t.Errorf("err = %v, want ErrEmptySessionID", err)
	}
	bad := scamTurn("s1", "hi")
	bad.Message.Sender = "robot"
	if _, err := svc.HandleTurn(context.Background(), bad); !errors.Is(err, ErrInvalidSender) {
		t.Errorf("err = %v, want ErrInvalidSender", err)
	}
}

func TestShouldReport(t *testing.T) {
	tests := []struct {
		total     int
		conf      float64
		completed bool
		want      bool
	}{
		{7, 0.5, false, false},
		{8, 0.5, false, true},
		{12, 0.5, false, true},
		{3, 0.9, false, false},
		{4, 0.8, false, true},
		{4, 0.79, false, false},
		{20, 1.0, true, false},
	}
	for _, tt := range tests {
		if got := ShouldReport(tt.total, tt.conf, tt.completed); got != tt.want {
			t.Errorf("ShouldReport(%d, %.2f, %v) = %v, want %v", tt.total, tt.conf, tt.completed, got, tt.want)
		}
	}
}

func TestHandleTurnRecoversAfterSelectorPanic(t *testing.T) {
	store := session.NewStore()
	svc := NewService(store, &panicOnceSelector{}, &fakeReporter{})
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected selector panic to propagate")
			}
		}()
		_, _ = svc.HandleTurn(ctx, scamTurn("s1", highConfidenceText))
	}()

	type outcome struct {
		res   Result
		err   error
		stats domain.Stats
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := svc.HandleTurn(ctx, scamTurn("s1", highConfidenceText))
		if err == nil {
			_, err = svc.HandleTurn(ctx, scamTurn("s2", "Hello there"))
		}
		done <- outcome{res: res, err: err, stats: svc.Stats()}
	}()

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("HandleTurn after panic: %v", got.err)
		}
		if got.res.Reply != "Which bank is this?" {
			t.Errorf("Reply = %q", got.res.Reply)
		}
		if got.stats.Total != 2 {
			t.Errorf("Stats.Total = %d, want 2", got.stats.Total)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service blocked after a panic during a turn")
	}
}

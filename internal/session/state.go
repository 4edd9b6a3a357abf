package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/extractor"
)

const (
	maxStage         = 5
	maxNoteKeywords  = 5
	highEngagement   = 0.7
	lowEngagement    = 0.3
	defaultAgentNote = "Suspicious activity detected"
)

// state is the live, mutable form of a session. It is only touched while the
// owning entry's mutex is held.
type state struct {
	domain.Session
	reportPending bool
}

func newState(id string, now time.Time) *state {
	return &state{Session: domain.Session{
		SessionID:    id,
		Messages:     []domain.Message{},
		Intelligence: domain.NewArtifactSet(),
		RiskLevel:    domain.RiskVeryLow,
		StartTime:    now,
		LastActivity: now,
	}}
}

func (s *state) recordTurn(msg domain.Message, fraud bool, confidence float64, now time.Time) {
	if msg.Timestamp == 0 {
		msg.Timestamp = now.UnixMilli()
	}
	if n := len(s.Messages); n > 0 && msg.Timestamp < s.Messages[n-1].Timestamp {
		msg.Timestamp = s.Messages[n-1].Timestamp
	}
	s.Messages = append(s.Messages, msg)

	switch msg.Sender {
	case domain.SenderScammer:
		s.ScammerMessages++
	case domain.SenderUser:
		s.AgentMessages++
	}

	if fraud {
		s.ScamDetected = true
		s.ScamConfidence = max(s.ScamConfidence, confidence)
		s.RiskLevel = domain.RiskFromConfidence(s.ScamConfidence)
	}

	s.ConversationStage = min(len(s.Messages)/2, maxStage)
	s.EngagementScore = s.engagement()
}

func (s *state) mergeArtifacts(candidate domain.ArtifactSet) {
	s.Intelligence = extractor.Merge(s.Intelligence, candidate)
	s.EngagementScore = s.engagement()
}

// engagement averages message volume, scammer share and artifact diversity.
func (s *state) engagement() float64 {
	total := len(s.Messages)
	if total == 0 {
		return 0
	}
	volume := min(float64(total)*0.1, 1.0)
	ratio := float64(s.ScammerMessages) / float64(total)
	diversity := min(0.2*float64(s.Intelligence.NonEmpty()), 1.0)
	return (volume + ratio + diversity) / 3
}

func (s *state) snapshot() domain.Session {
	out := s.Session
	out.Messages = make([]domain.Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	out.Intelligence = s.Intelligence.Clone()
	return out
}

func (s *state) summary() domain.Summary {
	return domain.Summary{
		SessionID:              s.SessionID,
		ScamDetected:           s.ScamDetected,
		TotalMessagesExchanged: len(s.Messages),
		ExtractedIntelligence:  s.Intelligence.Clone(),
		AgentNotes:             s.agentNotes(),
		ScamConfidence:         s.ScamConfidence,
		RiskLevel:              s.RiskLevel,
		EngagementScore:        s.EngagementScore,
		Duration:               s.LastActivity.Sub(s.StartTime),
	}
}

func (s *state) agentNotes() string {
	var notes []string
	intel := s.Intelligence

	if s.ScamDetected {
		notes = append(notes, fmt.Sprintf("Scam detected with %.2f confidence", s.ScamConfidence))
	}
	if kw := intel.SuspiciousKeywords; len(kw) > 0 {
		notes = append(notes, "Used keywords: "+strings.Join(kw[:min(len(kw), maxNoteKeywords)], ", "))
	}
	if len(intel.PaymentIDs) > 0 {
		notes = append(notes, "Requested UPI payments")
	}
	if len(intel.URLs) > 0 {
		notes = append(notes, "Shared suspicious links")
	}
	if len(intel.PhoneNumbers) > 0 {
		notes = append(notes, "Provided contact numbers")
	}
	switch {
	case s.EngagementScore > highEngagement:
		notes = append(notes, "High engagement - persistent scammer")
	case s.EngagementScore < lowEngagement:
		notes = append(notes, "Low engagement - quick exit")
	}

	if len(notes) == 0 {
		return defaultAgentNote
	}
	return strings.Join(notes, "; ")
}

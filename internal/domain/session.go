package domain

import "time"

// RiskLevel is a discretized bucket of fraud confidence.
type RiskLevel string

const (
	RiskVeryLow RiskLevel = "very_low"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
)

// RiskFromConfidence maps a confidence score onto a risk bucket.
func RiskFromConfidence(confidence float64) RiskLevel {
	switch {
	case confidence >= 0.8:
		return RiskHigh
	case confidence >= 0.6:
		return RiskMedium
	case confidence >= 0.4:
		return RiskLow
	default:
		return RiskVeryLow
	}
}

// Session is a point-in-time copy of a conversation's state.
// Values returned by the session store are snapshots and never alias live state.
type Session struct {
	SessionID         string      `json:"sessionId"`
	Messages          []Message   `json:"messages"`
	Intelligence      ArtifactSet `json:"extractedIntelligence"`
	ScamDetected      bool        `json:"scamDetected"`
	ScamConfidence    float64     `json:"scamConfidence"`
	ConversationStage int         `json:"conversationStage"`
	EngagementScore   float64     `json:"engagementScore"`
	RiskLevel         RiskLevel   `json:"riskLevel"`
	StartTime         time.Time   `json:"startTime"`
	LastActivity      time.Time   `json:"lastActivity"`
	Completed         bool        `json:"completed"`
	ScammerMessages   int         `json:"scammerMessagesCount"`
	AgentMessages     int         `json:"agentMessagesCount"`
}

// TotalMessages returns the number of recorded messages.
func (s Session) TotalMessages() int {
	return len(s.Messages)
}

// Summary is the snapshot delivered to the reporting collaborator.
type Summary struct {
	SessionID              string        `json:"sessionId"`
	ScamDetected           bool          `json:"scamDetected"`
	TotalMessagesExchanged int           `json:"totalMessagesExchanged"`
	ExtractedIntelligence  ArtifactSet   `json:"extractedIntelligence"`
	AgentNotes             string        `json:"agentNotes"`
	ScamConfidence         float64       `json:"-"`
	RiskLevel              RiskLevel     `json:"-"`
	EngagementScore        float64       `json:"-"`
	Duration               time.Duration `json:"-"`
}

// Stats aggregates counts across all live sessions.
type Stats struct {
	Total  int `json:"totalSessions"`
	Active int `json:"activeSessions"`
	Scam   int `json:"scamSessions"`
}

// DetectionRate returns the share of flagged sessions as a percentage.
func (s Stats) DetectionRate() float64 {
	total := s.Total
	if total < 1 {
		total = 1
	}
	return float64(s.Scam) / float64(total) * 100
}

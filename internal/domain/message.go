// Package domain contains core domain types for the decoy engagement service.
package domain

import "time"

// Sender identifies who wrote a message.
type Sender string

const (
	// SenderScammer is the suspected fraudulent correspondent.
	SenderScammer Sender = "scammer"
	// SenderUser is the decoy persona replying on our side.
	SenderUser Sender = "user"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderScammer || s == SenderUser
}

// Message is a single recorded turn. Immutable once recorded.
type Message struct {
	Sender    Sender `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
}

// Time returns the message timestamp as a time.Time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Metadata carries optional channel information supplied with an inbound turn.
type Metadata struct {
	Channel  string `json:"channel,omitempty"`
	Language string `json:"language,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

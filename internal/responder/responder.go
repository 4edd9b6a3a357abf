// Package responder picks the decoy persona's next reply.
//
// Selection is categorical: the conversation length decides a stage, recent
// messages set a few context flags, and a reply is drawn uniformly from the
// stage's candidate list, extended by flag-specific candidates.
package responder

import (
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/ashureev/decoy/internal/domain"
)

const (
	contextWindow = 3
	maxStage      = 4
)

// Source draws a uniform integer in [0, n).
type Source interface {
	IntN(n int) int
}

// lockedSource makes a *rand.Rand safe for concurrent sessions.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// NewSource returns a concurrency-safe Source. A zero seed draws a random seed.
func NewSource(seed uint64) Source {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Flags are the context signals derived from the most recent messages.
type Flags struct {
	Bank   bool
	UPI    bool
	KYC    bool
	Urgent bool
	Link   bool
	Money  bool
	Stage  int
}

// Analyze derives Flags from the last three messages of history.
func Analyze(history []domain.Message) Flags {
	recent := history[max(0, len(history)-contextWindow):]
	texts := make([]string, len(recent))
	for i, m := range recent {
		texts[i] = strings.ToLower(m.Text)
	}

	return Flags{
		Bank:   anyContains(texts, "bank"),
		UPI:    anyContains(texts, "upi"),
		KYC:    anyContains(texts, "kyc"),
		Urgent: anyContains(texts, "urgent", "immediate", "now"),
		Link:   anyContains(texts, "link", "click"),
		Money:  anyContains(texts, "money", "payment", "deposit", "transfer"),
		Stage:  min(len(history)/2, maxStage),
	}
}

// Selector draws replies from a Source.
type Selector struct {
	src Source
}

// New creates a Selector. A nil src uses a randomly seeded Source.
func New(src Source) *Selector {
	if src == nil {
		src = NewSource(0)
	}
	return &Selector{src: src}
}

// SelectReply returns the next reply for history. It never returns "".
func (s *Selector) SelectReply(history []domain.Message) string {
	return SelectReply(history, s.src)
}

// SelectReply returns the next reply for history using src.
func SelectReply(history []domain.Message, src Source) string {
	if len(history) == 0 {
		return draw(src, firstContact)
	}
	return draw(src, Candidates(Analyze(history)))
}

// Candidates lists the replies eligible for the given context.
func Candidates(f Flags) []string {
	var base []string
	var extra [][]string

	switch f.Stage {
	case 0:
		base = initialReplies
		extra = append(extra, when(f.Bank, bankReplies))
	case 1:
		base = engagementReplies
		extra = append(extra, when(f.Urgent, urgentReplies))
	case 2:
		base = infoSeekingReplies
		extra = append(extra, when(f.UPI, upiReplies), when(f.Link, linkReplies))
	case 3:
		base = verificationReplies
		extra = append(extra, when(f.Money, moneyReplies))
	default:
		base = advancedReplies
		extra = append(extra, when(f.KYC, kycReplies))
	}

	out := append([]string(nil), base...)
	for _, e := range extra {
		out = append(out, e...)
	}
	return out
}

func draw(src Source, candidates []string) string {
	return candidates[src.IntN(len(candidates))]
}

func when(ok bool, replies []string) []string {
	if ok {
		return replies
	}
	return nil
}

func anyContains(texts []string, needles ...string) bool {
	for _, t := range texts {
		for _, n := range needles {
			if strings.Contains(t, n) {
				return true
			}
		}
	}
	return false
}

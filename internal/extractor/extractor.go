// Package extractor locates syntactic intelligence artifacts in free text.
//
// Extraction favors recall: every family is matched by several alternative
// patterns and all matches are pooled. Nothing is validated, so any ten digit
// run is treated as a phone number. Output order follows pattern order and
// then position in the text, which keeps results stable across runs.
package extractor

import (
	"regexp"
	"strings"

	"github.com/ashureev/decoy/internal/domain"
)

var (
	paymentPatterns = compileAll(
		`(?i)[a-z0-9.\-_]{2,}@[a-z]{2,}`,
		`(?i)[a-z0-9.\-_]+@[\w.-]+`,
		`(?i)\b[\w.-]+@[\w.-]+\.[a-z]{2,}\b`,
	)
	phonePatterns = compileAll(
		`\+91[6-9]\d{9}`,
		`\+?\d{10,15}`,
		`\b\d{10}\b`,
		`\+91[-\s]?\d{5}[-\s]?\d{5}`,
	)
	urlPatterns = compileAll(
		`(?i)https?://\S+`,
		`(?i)www\.\S+`,
		`(?i)[a-z0-9.-]+\.[a-z]{2,}\S*`,
	)
	accountPatterns = compileAll(
		`\b\d{10,18}\b`,
		`(?i)\b[a-z]{4}\d{7,15}\b`,
		`(?i)account\s*#?\s*[:\-]?\s*\d+`,
		`(?i)a/c\s*[:\-]?\s*\d+`,
		// Card numbers share the account collection.
		`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`,
		`\b\d{13,19}\b`,
		`(?i)card\s*#?\s*[:\-]?\s*\d+`,
	)
)

var suspiciousWords = []string{
	"urgent", "immediate", "verify", "confirm", "suspended",
	"blocked", "freeze", "expire", "limited", "exclusive",
	"prize", "winner", "lottery", "bonus", "reward",
	"click", "download", "install", "update", "payment",
	"required", "deposit", "transfer", "otp", "cvv", "pin",
}

// Extract returns the candidate artifacts found in text.
// Each collection is deduplicated; empty text yields an empty set.
func Extract(text string) domain.ArtifactSet {
	return domain.ArtifactSet{
		PaymentIDs:         findAll(paymentPatterns, text),
		PhoneNumbers:       findAll(phonePatterns, text),
		URLs:               findAll(urlPatterns, text),
		AccountNumbers:     findAll(accountPatterns, text),
		SuspiciousKeywords: keywordsIn(text),
	}
}

// Merge returns the per-collection union of existing and candidate.
// Existing entries keep their position; new entries are appended in candidate
// order. Neither argument is modified.
func Merge(existing, candidate domain.ArtifactSet) domain.ArtifactSet {
	return domain.ArtifactSet{
		PaymentIDs:         union(existing.PaymentIDs, candidate.PaymentIDs),
		PhoneNumbers:       union(existing.PhoneNumbers, candidate.PhoneNumbers),
		URLs:               union(existing.URLs, candidate.URLs),
		AccountNumbers:     union(existing.AccountNumbers, candidate.AccountNumbers),
		SuspiciousKeywords: union(existing.SuspiciousKeywords, candidate.SuspiciousKeywords),
	}
}

// ExtractInto is shorthand for Merge(existing, Extract(text)).
func ExtractInto(existing domain.ArtifactSet, text string) domain.ArtifactSet {
	return Merge(existing, Extract(text))
}

func findAll(patterns []*regexp.Regexp, text string) []string {
	var found []string
	for _, p := range patterns {
		for _, m := range p.FindAllString(text, -1) {
			if m = trimMatch(m); m != "" {
				found = append(found, m)
			}
		}
	}
	return union(nil, found)
}

// trimMatch strips sentence punctuation that greedy \S+ patterns pick up.
func trimMatch(s string) string {
	return strings.TrimRight(s, ".,;:!?)\"'")
}

func keywordsIn(text string) []string {
	lower := strings.ToLower(text)
	found := []string{}
	for _, w := range suspiciousWords {
		if strings.Contains(lower, w) {
			found = append(found, w)
		}
	}
	return found
}

func union(base, add []string) []string {
	out := make([]string, 0, len(base)+len(add))
	seen := make(map[string]struct{}, len(base)+len(add))
	for _, list := range [][]string{base, add} {
		for _, v := range list {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

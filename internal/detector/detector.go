// Package detector scores inbound text for fraud likelihood.
package detector

import (
	"regexp"
	"strings"
)

// Threshold is the minimum confidence at which text is classified as fraud.
const Threshold = 0.4

// Category tags attached to a result when a pattern family fires.
const (
	TagUrgency   = "urgency_tactic"
	TagFinancial = "financial_threat"
	TagPhishing  = "phishing_attempt"
	TagLink      = "suspicious_link"
	TagPhone     = "phone_number"
)

const (
	keywordWeight   = 0.15
	urgencyWeight   = 0.25
	financialWeight = 0.30
	phishingWeight  = 0.20
	linkWeight      = 0.15
	phoneWeight     = 0.10
)

var keywords = []string{
	"blocked", "verify", "urgent", "upi", "account",
	"suspended", "kyc", "click", "bank", "immediately",
	"limited time", "offer expires", "prize", "winner",
	"lottery", "congratulations", "payment required",
	"act now", "don't miss", "exclusive", "bonus",
	"reward", "claim", "expire", "suspend", "freeze",
	"debit card", "credit card", "cvv", "otp", "pin",
}

var (
	urgencyPatterns = compileAll(
		`\burgent\b`, `\bimmediately\b`, `\bright now\b`,
		`\blast chance\b`, `\blimited time\b`, `\btoday only\b`,
	)
	// Stems anchor only at the start of the first word; the inflectable
	// tail (block, suspend, account, fund, link) is left open so "accounts
	// ... suspended" and "blocked" still match.
	financialPatterns = compileAll(
		`\baccount.*block`, `\baccount.*suspend`, `\bverify.*account`,
		`\bpayment.*required\b`, `\bdeposit.*money\b`, `\btransfer.*fund`,
	)
	phishingPatterns = compileAll(
		`\bclick.*link`, `\bdownload.*app\b`, `\binstall.*software\b`,
		`\bupdate.*details\b`, `\bconfirm.*information\b`,
	)
	linkPattern  = regexp.MustCompile(`https?://\S+`)
	phonePattern = regexp.MustCompile(`\+?\d{10,}`)
)

// Result is the outcome of scoring a piece of text.
type Result struct {
	IsFraud    bool
	Tags       []string
	Confidence float64
}

// Score computes a weighted fraud score for text. It is pure and total:
// identical input always yields an identical Result, and empty input scores zero.
func Score(text string) Result {
	lower := strings.ToLower(text)
	var (
		score float64
		tags  []string
	)

	for _, k := range keywords {
		if strings.Contains(lower, k) {
			tags = append(tags, k)
			score += keywordWeight
		}
	}

	families := []struct {
		patterns []*regexp.Regexp
		weight   float64
		tag      string
	}{
		{urgencyPatterns, urgencyWeight, TagUrgency},
		{financialPatterns, financialWeight, TagFinancial},
		{phishingPatterns, phishingWeight, TagPhishing},
	}
	for _, f := range families {
		hit := false
		for _, p := range f.patterns {
			if p.MatchString(lower) {
				score += f.weight
				hit = true
			}
		}
		if hit {
			tags = append(tags, f.tag)
		}
	}

	if linkPattern.MatchString(lower) {
		score += linkWeight
		tags = append(tags, TagLink)
	}
	if phonePattern.MatchString(text) {
		score += phoneWeight
		tags = append(tags, TagPhone)
	}

	confidence := min(score, 1.0)
	return Result{
		IsFraud:    confidence >= Threshold,
		Tags:       tags,
		Confidence: confidence,
	}
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

package domain

// ArtifactSet holds the intelligence extracted from a conversation.
// Each collection is an order-preserving sequence without duplicates.
type ArtifactSet struct {
	PaymentIDs         []string `json:"upiIds"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	URLs               []string `json:"phishingLinks"`
	AccountNumbers     []string `json:"bankAccounts"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// NewArtifactSet returns an empty set whose collections encode as [] rather than null.
func NewArtifactSet() ArtifactSet {
	return ArtifactSet{
		PaymentIDs:         []string{},
		PhoneNumbers:       []string{},
		URLs:               []string{},
		AccountNumbers:     []string{},
		SuspiciousKeywords: []string{},
	}
}

// Clone returns a deep copy of the set.
func (a ArtifactSet) Clone() ArtifactSet {
	return ArtifactSet{
		PaymentIDs:         cloneStrings(a.PaymentIDs),
		PhoneNumbers:       cloneStrings(a.PhoneNumbers),
		URLs:               cloneStrings(a.URLs),
		AccountNumbers:     cloneStrings(a.AccountNumbers),
		SuspiciousKeywords: cloneStrings(a.SuspiciousKeywords),
	}
}

// NonEmpty returns how many collections hold at least one value.
func (a ArtifactSet) NonEmpty() int {
	n := 0
	for _, c := range [][]string{a.PaymentIDs, a.PhoneNumbers, a.URLs, a.AccountNumbers, a.SuspiciousKeywords} {
		if len(c) > 0 {
			n++
		}
	}
	return n
}

// IsEmpty reports whether every collection is empty.
func (a ArtifactSet) IsEmpty() bool {
	return a.NonEmpty() == 0
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

package status

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Upstream producers historically wrote status as loosely-formed text: mixed
// casing, accents, underscores, word order, partial synonyms. Normalize is the
// deterministic classifier that absorbs that ambiguity at the boundary.
//
// Classification is an ordered list of keyword rules, first match wins. Each
// rule requires one keyword from every group and none from the excluded set.
// Rule order matters: "ready+print" must be tested before bare "print", and
// "ready+delivery" before bare "delivery", because the pairs share a keyword.
type rule struct {
	target Status
	groups [][]string
	none   []string
}

var rules = []rule{
	{target: ReadyForPrint, groups: [][]string{{"pret", "ready"}, {"impression", "print"}}},
	{target: Printing, groups: [][]string{{"impression", "print"}}, none: []string{"pret", "ready"}},
	{target: ReadyForDelivery, groups: [][]string{{"pret", "ready"}, {"livraison", "delivery"}}},
	{target: OutForDelivery, groups: [][]string{{"livraison", "delivery"}}},
	{target: Delivered, groups: [][]string{{"livre", "delivered"}}},
	{target: Completed, groups: [][]string{{"termine", "finished", "complete"}}},
	{target: ToReview, groups: [][]string{{"revoir", "review"}}},
	{target: InProgress, groups: [][]string{{"cours", "progress", "preparation"}}},
	{target: Draft, groups: [][]string{{"brouillon", "draft"}}},
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lower-cases the input, strips diacritics and collapses separators and
// whitespace into single spaces.
func Fold(raw string) string {
	folded, _, err := transform.String(stripAccents, raw)
	if err != nil {
		folded = raw
	}
	folded = strings.ToLower(folded)
	folded = strings.NewReplacer("_", " ", "-", " ", "/", " ").Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// Normalize classifies a raw status string into a canonical status. When no
// rule matches it returns the folded token and false: an unknown status the
// engine accepts for display but rejects as a transition target.
func Normalize(raw string) (Status, bool) {
	folded := Fold(raw)
	for _, r := range rules {
		if r.matches(folded) {
			return r.target, true
		}
	}
	return Status(folded), false
}

func (r rule) matches(folded string) bool {
	for _, group := range r.groups {
		if !containsAny(folded, group) {
			return false
		}
	}
	return !containsAny(folded, r.none)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

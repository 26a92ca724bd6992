// Package evidence holds the collected search results a report is built
// from: items grouped by news category, with append-only merge semantics
// and cheap fingerprint-based deduplication.
package evidence

import (
	"errors"
	"sort"
	"strings"
)

// Standard categories, in display order. A Set may also carry ad hoc
// categories produced by targeted searches.
const (
	CategoryBreaking   = "breaking_news"
	CategoryInnovation = "innovation_news"
	CategoryInvestment = "investment_news"
	CategoryPolicy     = "policy_news"
	CategoryTrend      = "trend_news"
	CategoryCompany    = "company_news"
)

// Categories lists the standard buckets in a stable order.
var Categories = []string{
	CategoryBreaking,
	CategoryInnovation,
	CategoryInvestment,
	CategoryPolicy,
	CategoryTrend,
	CategoryCompany,
}

// ErrUnidentifiable is returned when an item has neither a title nor any
// content, so no fingerprint can be derived for it. Callers treat this as
// a contract violation by the producing collector.
var ErrUnidentifiable = errors.New("evidence: item has no title or content to fingerprint")

// fingerprintPrefix bounds how much content participates in the
// fingerprint. Bounded so that unbounded article bodies stay cheap to key.
const fingerprintPrefix = 200

// Item is one unit of retrieved information. Items are immutable once
// created; a Set only ever appends them.
type Item struct {
	Title   string
	Content string
	Source  string
	URL     string // optional, not every provider returns one
}

// Fingerprint derives the dedup identity of an item: lowercased title plus
// a bounded prefix of lowercased content. Two items with equal fingerprints
// are duplicates and the earliest-seen wins.
func Fingerprint(it Item) (string, error) {
	title := strings.ToLower(strings.TrimSpace(it.Title))
	content := strings.ToLower(strings.TrimSpace(it.Content))
	if title == "" && content == "" {
		return "", ErrUnidentifiable
	}
	// Prefix by runes, not bytes, so multi-byte text is not split mid-character.
	if runes := []rune(content); len(runes) > fingerprintPrefix {
		content = string(runes[:fingerprintPrefix])
	}
	return title + "|" + content, nil
}

// Set maps category names to ordered item lists. TotalCount is recomputed
// after every merge and always equals the sum of the per-category lengths.
type Set struct {
	Items      map[string][]Item
	TotalCount int
}

// NewSet returns an empty Set with all standard categories present.
func NewSet() *Set {
	items := make(map[string][]Item, len(Categories))
	for _, c := range Categories {
		items[c] = nil
	}
	return &Set{Items: items}
}

// Merge appends new items to their categories, skipping any item whose
// fingerprint was already seen in this set or earlier in this merge call.
// Deduplication is cross-category. Existing items are never removed.
// Returns the number of items actually added. An unfingerprintable item
// aborts the merge with ErrUnidentifiable; the set is left recounted and
// consistent with whatever was appended before the bad item.
func (s *Set) Merge(batch map[string][]Item) (int, error) {
	seen := make(map[string]struct{}, s.TotalCount)
	for _, items := range s.Items {
		for _, it := range items {
			fp, err := Fingerprint(it)
			if err != nil {
				continue // already-held items were validated on the way in
			}
			seen[fp] = struct{}{}
		}
	}

	added := 0
	for category, items := range batch {
		for _, it := range items {
			fp, err := Fingerprint(it)
			if err != nil {
				s.recount()
				return added, err
			}
			if _, dup := seen[fp]; dup {
				continue
			}
			seen[fp] = struct{}{}
			s.Items[category] = append(s.Items[category], it)
			added++
		}
	}
	s.recount()
	return added, nil
}

func (s *Set) recount() {
	total := 0
	for _, items := range s.Items {
		total += len(items)
	}
	s.TotalCount = total
}

// Flatten returns all items in a stable order: standard categories first,
// then any extra categories sorted by name.
func (s *Set) Flatten() []Item {
	out := make([]Item, 0, s.TotalCount)
	done := make(map[string]bool, len(s.Items))
	for _, c := range Categories {
		out = append(out, s.Items[c]...)
		done[c] = true
	}
	extra := make([]string, 0)
	for c := range s.Items {
		if !done[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	for _, c := range extra {
		out = append(out, s.Items[c]...)
	}
	return out
}

// Sample returns up to max items taken at an even stride across the whole
// set, so late-arriving results are represented instead of biasing toward
// whatever the first searches returned.
func (s *Set) Sample(max int) []Item {
	return SampleItems(s.Flatten(), max)
}

// SampleItems strides evenly over items, returning at most max of them.
func SampleItems(items []Item, max int) []Item {
	if max <= 0 || len(items) == 0 {
		return nil
	}
	if len(items) <= max {
		out := make([]Item, len(items))
		copy(out, items)
		return out
	}
	out := make([]Item, 0, max)
	step := float64(len(items)) / float64(max)
	for i := 0; i < max; i++ {
		out = append(out, items[int(float64(i)*step)])
	}
	return out
}

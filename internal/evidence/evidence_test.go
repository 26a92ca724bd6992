package evidence

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name string
		a    Item
		b    Item
		same bool
	}{
		{
			name: "case and surrounding whitespace ignored",
			a:    Item{Title: "  AI Chip Launch  ", Content: "TSMC announced"},
			b:    Item{Title: "ai chip launch", Content: "tsmc announced"},
			same: true,
		},
		{
			name: "different titles differ",
			a:    Item{Title: "AI Chip Launch", Content: "same body"},
			b:    Item{Title: "AI Chip Recall", Content: "same body"},
			same: false,
		},
		{
			name: "content beyond prefix does not matter",
			a:    Item{Title: "t", Content: strings.Repeat("a", 200) + "xxx"},
			b:    Item{Title: "t", Content: strings.Repeat("a", 200) + "yyy"},
			same: true,
		},
		{
			name: "content inside prefix matters",
			a:    Item{Title: "t", Content: strings.Repeat("a", 199) + "x"},
			b:    Item{Title: "t", Content: strings.Repeat("a", 199) + "y"},
			same: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa, err := Fingerprint(tt.a)
			if err != nil {
				t.Fatalf("Fingerprint(a): %v", err)
			}
			fb, err := Fingerprint(tt.b)
			if err != nil {
				t.Fatalf("Fingerprint(b): %v", err)
			}
			if (fa == fb) != tt.same {
				t.Errorf("fingerprints %q vs %q: same=%v, want %v", fa, fb, fa == fb, tt.same)
			}
		})
	}
}

func TestFingerprintMultibyteContent(t *testing.T) {
	// 300 CJK runes must be cut at a rune boundary, not a byte offset.
	it := Item{Title: "报告", Content: strings.Repeat("智", 300)}
	fp, err := Fingerprint(it)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	want := "报告|" + strings.Repeat("智", 200)
	if fp != want {
		t.Errorf("fingerprint truncated wrong: got %d bytes, want %d", len(fp), len(want))
	}
}

func TestFingerprintUnidentifiable(t *testing.T) {
	_, err := Fingerprint(Item{Title: "   ", Content: "\t\n"})
	if !errors.Is(err, ErrUnidentifiable) {
		t.Errorf("Fingerprint(blank item) = %v, want ErrUnidentifiable", err)
	}
}

func TestMergeDeduplicatesAcrossCategories(t *testing.T) {
	s := NewSet()
	added, err := s.Merge(map[string][]Item{
		CategoryBreaking: {{Title: "Story A", Content: "body a", Source: "tavily"}},
	})
	if err != nil || added != 1 {
		t.Fatalf("first merge: added=%d err=%v", added, err)
	}

	// Same story arriving under a different category is a duplicate.
	added, err = s.Merge(map[string][]Item{
		CategoryTrend: {
			{Title: "Story A", Content: "body a", Source: "brave"},
			{Title: "Story B", Content: "body b", Source: "brave"},
		},
	})
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if added != 1 {
		t.Errorf("second merge added = %d, want 1", added)
	}
	if s.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", s.TotalCount)
	}
	if len(s.Items[CategoryTrend]) != 1 {
		t.Errorf("trend_news has %d items, want 1", len(s.Items[CategoryTrend]))
	}
	// Earliest-seen wins: the tavily copy stays.
	if got := s.Items[CategoryBreaking][0].Source; got != "tavily" {
		t.Errorf("retained source = %q, want tavily", got)
	}
}

func TestMergeIdempotent(t *testing.T) {
	batch := map[string][]Item{
		CategoryPolicy: {
			{Title: "Reg update", Content: "new rules"},
			{Title: "Second piece", Content: "more rules"},
		},
	}

	s := NewSet()
	if _, err := s.Merge(batch); err != nil {
		t.Fatal(err)
	}
	first := s.TotalCount
	if _, err := s.Merge(batch); err != nil {
		t.Fatal(err)
	}
	if s.TotalCount != first {
		t.Errorf("TotalCount after re-merge = %d, want %d", s.TotalCount, first)
	}
}

func TestMergeMonotonicGrowth(t *testing.T) {
	s := NewSet()
	prev := 0
	for i := 0; i < 5; i++ {
		batch := map[string][]Item{
			CategoryInnovation: {
				{Title: fmt.Sprintf("item %d", i), Content: "body"},
				{Title: "item 0", Content: "body"}, // repeat offender
			},
		}
		if _, err := s.Merge(batch); err != nil {
			t.Fatal(err)
		}
		if s.TotalCount < prev {
			t.Fatalf("TotalCount shrank: %d -> %d", prev, s.TotalCount)
		}
		prev = s.TotalCount
	}
	if s.TotalCount != 5 {
		t.Errorf("TotalCount = %d, want 5", s.TotalCount)
	}
}

func TestMergeTotalCountInvariant(t *testing.T) {
	s := NewSet()
	s.Merge(map[string][]Item{
		CategoryBreaking: {{Title: "a", Content: "1"}, {Title: "b", Content: "2"}},
		CategoryCompany:  {{Title: "c", Content: "3"}},
	})
	sum := 0
	for _, items := range s.Items {
		sum += len(items)
	}
	if s.TotalCount != sum {
		t.Errorf("TotalCount = %d, sum of categories = %d", s.TotalCount, sum)
	}
}

func TestMergeUnidentifiableItemFails(t *testing.T) {
	s := NewSet()
	_, err := s.Merge(map[string][]Item{
		CategoryBreaking: {{Title: "", Content: ""}},
	})
	if !errors.Is(err, ErrUnidentifiable) {
		t.Errorf("Merge = %v, want ErrUnidentifiable", err)
	}
	// The set stays consistent after a failed merge.
	sum := 0
	for _, items := range s.Items {
		sum += len(items)
	}
	if s.TotalCount != sum {
		t.Errorf("TotalCount = %d, sum = %d after failed merge", s.TotalCount, sum)
	}
}

func TestSampleItems(t *testing.T) {
	items := make([]Item, 90)
	for i := range items {
		items[i] = Item{Title: fmt.Sprintf("item %d", i), Content: "x"}
	}

	sample := SampleItems(items, 30)
	if len(sample) != 30 {
		t.Fatalf("sample size = %d, want 30", len(sample))
	}
	// Even stride, not first-N: the tail third must be represented.
	tail := 0
	for _, it := range sample {
		var n int
		fmt.Sscanf(it.Title, "item %d", &n)
		if n >= 60 {
			tail++
		}
	}
	if tail == 0 {
		t.Error("sample contains no items from the last third of the set")
	}

	if got := SampleItems(items[:10], 30); len(got) != 10 {
		t.Errorf("small input sample size = %d, want 10", len(got))
	}
	if got := SampleItems(nil, 30); got != nil {
		t.Errorf("nil input sample = %v, want nil", got)
	}
}

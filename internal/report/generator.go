// Package report turns a refined evidence set into a Markdown report:
// outline, per-section content, executive summary, references.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Daserxqc/reportgen/internal/ai"
	"github.com/Daserxqc/reportgen/internal/evidence"
	"github.com/Daserxqc/reportgen/internal/scraper"
)

// Generator is the LLM capability the writer needs. *ai.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt, system string, temperature float64, maxTokens int) (string, error)
}

// itemsPerSection bounds how much evidence feeds one section prompt.
const itemsPerSection = 8

// snippetThreshold is the content length below which an item is considered
// snippet-only and worth enriching from its URL.
const snippetThreshold = 200

// Writer drives report generation. The scraper is optional; without it
// snippet-only items go into prompts as-is.
type Writer struct {
	llm     Generator
	scraper *scraper.Scraper
}

// NewWriter creates a report writer.
func NewWriter(llm Generator, sc *scraper.Scraper) *Writer {
	return &Writer{llm: llm, scraper: sc}
}

// Section is one report section with the evidence that backs it.
type Section struct {
	Title   string
	Content string
	Items   []evidence.Item
}

// Build generates the full report. LLM failures degrade per stage: a
// failed outline falls back to the category layout, a failed section to a
// structured listing of its evidence, a failed summary to the section
// leads. The report always materializes.
func (w *Writer) Build(ctx context.Context, topic string, set *evidence.Set) (string, error) {
	if set == nil || set.TotalCount == 0 {
		slog.Warn("Building report from empty evidence", "topic", topic)
	}

	if w.scraper != nil {
		w.enrich(ctx, set)
	}

	titles := w.outline(ctx, topic, set)
	sections := make([]Section, 0, len(titles))
	for i, title := range titles {
		items := itemsForSection(set, i, len(titles))
		content := w.writeSection(ctx, topic, title, items)
		sections = append(sections, Section{Title: title, Content: content, Items: items})
	}

	summary := w.summarize(ctx, topic, sections)

	return assemble(topic, summary, sections, set), nil
}

// enrich replaces prompts' view of snippet-only items with fetched page
// text. Items themselves stay immutable; the fetched text is attached to
// fresh copies inside the set's categories via a merge-free swap.
func (w *Writer) enrich(ctx context.Context, set *evidence.Set) {
	type slot struct {
		category string
		index    int
	}
	var urls []string
	slots := make(map[string]slot)

	for category, items := range set.Items {
		for i, it := range items {
			if it.URL == "" || len([]rune(it.Content)) >= snippetThreshold {
				continue
			}
			if _, dup := slots[it.URL]; dup {
				continue
			}
			urls = append(urls, it.URL)
			slots[it.URL] = slot{category: category, index: i}
		}
	}
	if len(urls) == 0 {
		return
	}

	const maxFetches = 12
	if len(urls) > maxFetches {
		urls = urls[:maxFetches]
	}

	slog.Info("Enriching snippet-only evidence", "pages", len(urls))
	for _, res := range w.scraper.FetchAll(ctx, urls) {
		if res.Err != nil {
			slog.Debug("Page enrichment failed", "url", res.URL, "error", res.Err)
			continue
		}
		s := slots[res.URL]
		old := set.Items[s.category][s.index]
		set.Items[s.category][s.index] = evidence.Item{
			Title:   old.Title,
			Content: res.Content,
			Source:  old.Source,
			URL:     old.URL,
		}
	}
}

func (w *Writer) outline(ctx context.Context, topic string, set *evidence.Set) []string {
	prompt := buildOutlinePrompt(topic, set)
	system := fmt.Sprintf("You are a senior industry analyst structuring a report on %s.", topic)

	resp, err := w.llm.Generate(ctx, prompt, system, 0.5, 500)
	if err != nil {
		slog.Warn("Outline generation failed, using category layout", "topic", topic, "error", err)
		return defaultOutline(topic)
	}

	titles := ai.ParseLines(resp)
	var out []string
	for _, t := range titles {
		if len(t) >= 4 && len(t) <= 120 {
			out = append(out, t)
		}
		if len(out) >= 7 {
			break
		}
	}
	if len(out) < 3 {
		slog.Warn("Outline too thin, using category layout", "topic", topic, "lines", len(out))
		return defaultOutline(topic)
	}
	return out
}

func defaultOutline(topic string) []string {
	return []string{
		fmt.Sprintf("%s Major Events", topic),
		fmt.Sprintf("%s Technology and Innovation", topic),
		fmt.Sprintf("%s Investment and Funding", topic),
		fmt.Sprintf("%s Policy and Regulation", topic),
		fmt.Sprintf("%s Industry Trends", topic),
	}
}

func (w *Writer) writeSection(ctx context.Context, topic, title string, items []evidence.Item) string {
	if len(items) == 0 {
		return "_No sufficient evidence was collected for this section._"
	}

	prompt := buildSectionPrompt(topic, title, items)
	system := fmt.Sprintf("You are a professional analyst writing the %q section of an industry report on %s.", title, topic)

	content, err := w.llm.Generate(ctx, prompt, system, 0.6, 2000)
	if err != nil {
		slog.Warn("Section generation failed, falling back to evidence listing", "section", title, "error", err)
		return sectionFallback(items)
	}
	return strings.TrimSpace(content)
}

// sectionFallback renders the raw evidence when the LLM is unavailable,
// so partial pipeline failure still yields a usable document.
func sectionFallback(items []evidence.Item) string {
	var sb strings.Builder
	for _, it := range items {
		content := it.Content
		if runes := []rune(content); len(runes) > 300 {
			content = string(runes[:300]) + "…"
		}
		sb.WriteString(fmt.Sprintf("- **%s** (%s): %s\n", it.Title, it.Source, content))
	}
	return sb.String()
}

func (w *Writer) summarize(ctx context.Context, topic string, sections []Section) string {
	var body strings.Builder
	for _, s := range sections {
		body.WriteString(s.Title)
		body.WriteString("\n")
		body.WriteString(s.Content)
		body.WriteString("\n\n")
	}

	prompt := fmt.Sprintf(
		"Write a 200-300 word executive summary for this report on %q, aimed at decision makers. Focus on key findings and trends, not process.\n\nReport body:\n%s",
		topic, body.String())
	system := fmt.Sprintf("You are the lead analyst summarizing a report on %s.", topic)

	summary, err := w.llm.Generate(ctx, prompt, system, 0.5, 600)
	if err != nil {
		slog.Warn("Summary generation failed, using section leads", "topic", topic, "error", err)
		return summaryFallback(sections)
	}
	return strings.TrimSpace(summary)
}

func summaryFallback(sections []Section) string {
	var sb strings.Builder
	for _, s := range sections {
		first := strings.SplitN(strings.TrimSpace(s.Content), "\n", 2)[0]
		if first != "" {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", s.Title, first))
		}
	}
	return sb.String()
}

// itemsForSection deals evidence out to sections: each section gets a
// strided slice of the flattened set so all of them see varied material.
func itemsForSection(set *evidence.Set, index, total int) []evidence.Item {
	if set == nil || total == 0 {
		return nil
	}
	all := set.Flatten()
	var items []evidence.Item
	for i := index; i < len(all); i += total {
		items = append(items, all[i])
		if len(items) >= itemsPerSection {
			break
		}
	}
	return items
}

func buildOutlinePrompt(topic string, set *evidence.Set) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Design a section outline for an industry report on %q.\n\n", topic))

	sb.WriteString("Collected evidence by category:\n")
	for _, c := range evidence.Categories {
		if n := len(set.Items[c]); n > 0 {
			sb.WriteString(fmt.Sprintf("- %s: %d items\n", c, n))
		}
	}

	sample := set.Sample(10)
	if len(sample) > 0 {
		sb.WriteString("\nSample headlines:\n")
		for _, it := range sample {
			sb.WriteString("- ")
			sb.WriteString(it.Title)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nReturn 4-6 section titles, one per line, no numbering, no commentary.")
	return sb.String()
}

func buildSectionPrompt(topic, title string, items []evidence.Item) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Write the %q section of an industry report on %q.\n\n", title, topic))
	sb.WriteString("Base the section strictly on this evidence:\n\n")
	for i, it := range items {
		content := it.Content
		if runes := []rune(content); len(runes) > 1500 {
			content = string(runes[:1500])
		}
		sb.WriteString(fmt.Sprintf("[%d] %s (%s)\n%s\n\n", i+1, it.Title, it.Source, content))
	}
	sb.WriteString("Requirements: 300-500 words, analytical tone, cite evidence by [number], ")
	sb.WriteString("no invented facts, Markdown paragraphs without a section heading.")
	return sb.String()
}

// assemble stitches the final Markdown document together.
func assemble(topic, summary string, sections []Section, set *evidence.Set) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s Industry Report\n\n", topic))
	sb.WriteString(fmt.Sprintf("_Generated on %s_\n\n", time.Now().Format("2006-01-02")))

	sb.WriteString("## Executive Summary\n\n")
	sb.WriteString(summary)
	sb.WriteString("\n\n")

	for _, s := range sections {
		sb.WriteString(fmt.Sprintf("## %s\n\n", s.Title))
		sb.WriteString(s.Content)
		sb.WriteString("\n\n")
	}

	refs := collectReferences(set)
	if len(refs) > 0 {
		sb.WriteString("## References\n\n")
		for _, r := range refs {
			sb.WriteString(fmt.Sprintf("- [%s](%s)\n", r.Title, r.URL))
		}
	}

	return sb.String()
}

// collectReferences lists the distinct URLs backing the report, capped to
// keep the section readable.
func collectReferences(set *evidence.Set) []evidence.Item {
	if set == nil {
		return nil
	}
	const maxRefs = 30
	seen := make(map[string]struct{})
	var refs []evidence.Item
	for _, it := range set.Flatten() {
		if it.URL == "" {
			continue
		}
		if _, dup := seen[it.URL]; dup {
			continue
		}
		seen[it.URL] = struct{}{}
		refs = append(refs, it)
		if len(refs) >= maxRefs {
			break
		}
	}
	return refs
}

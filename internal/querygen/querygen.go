// Package querygen turns the weak dimensions of a quality evaluation into
// a bounded set of targeted search queries.
package querygen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Daserxqc/reportgen/internal/ai"
	"github.com/Daserxqc/reportgen/internal/evidence"
	"github.com/Daserxqc/reportgen/internal/search"
)

const (
	// maxQueries caps one generation round.
	maxQueries = 6
	// minUsable is the point below which an LLM response is considered too
	// thin and the template fallback takes over.
	minUsable = 3
	// templatesPerDimension bounds how many fallback templates each weak
	// dimension contributes.
	templatesPerDimension = 2
)

// template is one fallback query pattern with the category its results
// should land in.
type template struct {
	pattern  string // %s receives the topic
	category string
}

// dimensionTemplates maps each quality dimension to targeted query
// patterns. Phrasings mix Chinese and English the way the industry press
// for these topics splits, which widens provider recall.
var dimensionTemplates = map[string][]template{
	"completeness": {
		{"%s 技术原理详解", evidence.CategoryInnovation},
		{"%s 应用案例分析 case studies", evidence.CategoryTrend},
	},
	"accuracy": {
		{"%s 官方数据 权威报告", evidence.CategoryPolicy},
		{"%s official statistics latest report", evidence.CategoryPolicy},
	},
	"depth": {
		{"%s 深度分析 in-depth analysis", evidence.CategoryInnovation},
		{"%s 行业研究报告 industry research", evidence.CategoryTrend},
	},
	"relevance": {
		{"%s 最新动态 latest news", evidence.CategoryBreaking},
		{"%s recent developments 最新进展", evidence.CategoryBreaking},
	},
	"clarity": {
		{"%s 概述 overview", evidence.CategoryTrend},
		{"%s 市场格局 market landscape", evidence.CategoryInvestment},
	},
}

// genericTemplates cover a continuation with no specific weakness to chase.
var genericTemplates = []template{
	{"%s 最新发展动态 breaking", evidence.CategoryBreaking},
	{"%s industry trends analysis", evidence.CategoryTrend},
	{"%s 投资 融资动态 investment", evidence.CategoryInvestment},
}

// initialTemplates seed the first collection pass, one or two angles per
// evidence category.
var initialTemplates = []template{
	{"%s 最新重大事件 breaking news", evidence.CategoryBreaking},
	{"%s latest major announcements", evidence.CategoryBreaking},
	{"%s 技术突破 创新 innovation", evidence.CategoryInnovation},
	{"%s 投资 融资 funding rounds", evidence.CategoryInvestment},
	{"%s 政策 监管 regulation policy", evidence.CategoryPolicy},
	{"%s 行业趋势 industry trends", evidence.CategoryTrend},
	{"%s 龙头企业动态 company news", evidence.CategoryCompany},
}

// InitialQueries returns the seed queries that bootstrap evidence
// collection before the first evaluation.
func InitialQueries(topic string) []search.Query {
	return fromTemplates(initialTemplates, topic, len(initialTemplates))
}

// dimensionCategory routes LLM-generated queries to the bucket of the
// weakness they target; trend_news is the catch-all.
var dimensionCategory = map[string]string{
	"completeness": evidence.CategoryInnovation,
	"accuracy":     evidence.CategoryPolicy,
	"depth":        evidence.CategoryTrend,
	"relevance":    evidence.CategoryBreaking,
	"clarity":      evidence.CategoryTrend,
}

// Generator is the LLM capability the mapper needs. *ai.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt, system string, temperature float64, maxTokens int) (string, error)
}

// Mapper generates targeted queries, preferring the LLM and falling back
// to the static template table. A nil llm skips straight to templates.
type Mapper struct {
	llm Generator
}

// NewMapper creates a query mapper. llm may be nil for template-only use.
func NewMapper(llm Generator) *Mapper {
	return &Mapper{llm: llm}
}

// Generate returns at most maxQueries deduplicated queries for the given
// weaknesses. It always returns at least one query: with no weak
// dimensions the generic exploratory set is used, so a continuing loop
// always has something to search.
func (m *Mapper) Generate(ctx context.Context, weakDims []string, topic string) []search.Query {
	if len(weakDims) == 0 {
		return fromTemplates(genericTemplates, topic, maxQueries)
	}

	if m.llm != nil {
		if queries := m.generateLLM(ctx, weakDims, topic); len(queries) >= minUsable {
			return queries
		}
		slog.Info("LLM produced too few usable queries, using template fallback", "topic", topic)
	}

	return m.fallback(weakDims, topic)
}

func (m *Mapper) generateLLM(ctx context.Context, weakDims []string, topic string) []search.Query {
	prompt := buildQueryPrompt(weakDims, topic)
	system := fmt.Sprintf("You are a search specialist for the %s industry, turning gap analyses into precise queries.", topic)

	resp, err := m.llm.Generate(ctx, prompt, system, 0.7, 800)
	if err != nil {
		slog.Warn("LLM query generation failed", "topic", topic, "error", err)
		return nil
	}

	seen := make(map[string]struct{})
	var queries []search.Query
	for i, line := range ai.ParseLines(resp) {
		line = strings.TrimSpace(line)
		// Specific queries mention the topic and are neither fragments nor essays.
		if !strings.Contains(strings.ToLower(line), strings.ToLower(topic)) {
			continue
		}
		if len(line) < 10 || len(line) > 200 {
			continue
		}
		key := strings.ToLower(line)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		// Round-robin the weaknesses so every one gets query coverage.
		dim := weakDims[i%len(weakDims)]
		category, ok := dimensionCategory[dim]
		if !ok {
			category = evidence.CategoryTrend
		}
		queries = append(queries, search.Query{Text: line, Category: category})
		if len(queries) >= maxQueries {
			break
		}
	}
	return queries
}

func buildQueryPrompt(weakDims []string, topic string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("A report on %q has quality gaps in these dimensions: %s.\n\n",
		topic, strings.Join(weakDims, ", ")))
	sb.WriteString("Propose 3-6 search queries that would close these specific gaps.\n")
	sb.WriteString("Requirements:\n")
	sb.WriteString(fmt.Sprintf("1. Each query must include the topic keyword %q.\n", topic))
	sb.WriteString("2. Be specific and targeted, not generic; cover a different angle per weakness.\n")
	sb.WriteString("3. Phrase for a search engine: short keyword phrases, no full sentences.\n")
	sb.WriteString("\nReturn ONLY the queries, one per line.")
	return sb.String()
}

// fallback draws from the static template table: up to two templates per
// weak dimension, deduplicated, capped.
func (m *Mapper) fallback(weakDims []string, topic string) []search.Query {
	seen := make(map[string]struct{})
	var queries []search.Query
	for _, dim := range weakDims {
		templates, ok := dimensionTemplates[dim]
		if !ok {
			continue
		}
		if len(templates) > templatesPerDimension {
			templates = templates[:templatesPerDimension]
		}
		for _, t := range templates {
			text := fmt.Sprintf(t.pattern, topic)
			key := strings.ToLower(text)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			queries = append(queries, search.Query{Text: text, Category: t.category})
			if len(queries) >= maxQueries {
				return queries
			}
		}
	}
	if len(queries) == 0 {
		return fromTemplates(genericTemplates, topic, maxQueries)
	}
	return queries
}

func fromTemplates(templates []template, topic string, max int) []search.Query {
	queries := make([]search.Query, 0, len(templates))
	for _, t := range templates {
		queries = append(queries, search.Query{Text: fmt.Sprintf(t.pattern, topic), Category: t.category})
		if len(queries) >= max {
			break
		}
	}
	return queries
}

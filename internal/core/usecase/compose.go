package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hoteldesk/concierge/internal/config"
	"github.com/hoteldesk/concierge/internal/core/domain"
	"github.com/hoteldesk/concierge/internal/core/ports"
)

var phoneTriggers = []string{
	"phone number", "phone?", "call the hotel", "contact number",
	"front desk number", "how do i contact", "how can i contact",
}

// Composer turns admitted evidence into an answer. Two fast paths bypass
// generation entirely: direct contact questions are answered from the
// property catalog, and a single high-confidence evidence hit is returned
// verbatim.
type Composer struct {
	generator ports.AnswerGenerator
	catalog   config.Catalog
	params    Params
}

func NewComposer(generator ports.AnswerGenerator, catalog config.Catalog, params Params) *Composer {
	return &Composer{
		generator: generator,
		catalog:   catalog,
		params:    params.normalize(),
	}
}

func (c *Composer) Compose(ctx context.Context, state *domain.PipelineState) error {
	if c.phoneFastPath(state) {
		return nil
	}
	if c.faqFastPath(state) {
		return nil
	}

	blocks := mergeEvidenceBlocks(state.Candidates)
	prompt := c.buildPrompt(state.NormalizedQuery, blocks)

	raw, err := c.generator.Generate(ctx, prompt)
	// One regeneration absorbs a transient decode failure. A query whose
	// follow-up rewrite already failed is not worth a second round trip.
	if err != nil && !state.RewriteFailed {
		raw, err = c.generator.Generate(ctx, prompt)
	}
	if err != nil {
		return domain.WrapError(domain.ErrGenerationUnavailable, "compose answer", err)
	}

	answer, refs := parseReferenceList(raw)
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return domain.WrapError(domain.ErrGenerationUnavailable, "compose answer", fmt.Errorf("empty generation output"))
	}

	state.ComposedAnswer = answer
	state.UsedSources = resolveBlockSources(blocks, refs)
	return nil
}

func (c *Composer) phoneFastPath(state *domain.PipelineState) bool {
	if !containsAnyFold(state.OriginalQuery, phoneTriggers) {
		return false
	}
	p := c.catalog.PropertyByID(state.PropertyID)
	if p.Name == "" || p.Phone == "" {
		return false
	}
	state.ComposedAnswer = fmt.Sprintf("You can reach %s at %s.", p.Name, p.Phone)
	if p.LocationURL != "" {
		state.UsedSources = []string{p.LocationURL}
	}
	return true
}

// faqFastPath returns concise evidence verbatim when retrieval confidence
// is high enough that generation adds only paraphrase risk. The bar drops
// when the reranker strongly confirms the top hit.
func (c *Composer) faqFastPath(state *domain.PipelineState) bool {
	if len(state.Candidates) == 0 {
		return false
	}
	top := state.Candidates[0]

	threshold := c.params.FAQDirectThreshold
	if top.HasRerank && top.RerankScore >= 0.8 {
		threshold = c.params.FAQRelaxedThreshold
	}
	if top.FinalScore < threshold {
		return false
	}
	text := strings.TrimSpace(top.Record.Text)
	if text == "" || len(text) > 400 {
		return false
	}

	state.ComposedAnswer = text
	if top.Record.SourceURL != "" {
		state.UsedSources = []string{top.Record.SourceURL}
	}
	return true
}

// evidenceBlock is one numbered prompt item. Chunks sharing a source URL
// are merged into a single block so reference numbers map one-to-one onto
// sources.
type evidenceBlock struct {
	url      string
	category string
	text     string
}

func mergeEvidenceBlocks(candidates []domain.RetrievalCandidate) []evidenceBlock {
	blocks := make([]evidenceBlock, 0, len(candidates))
	byURL := make(map[string]int, len(candidates))
	seenText := make(map[string]struct{}, len(candidates))

	for _, cand := range candidates {
		text := strings.TrimSpace(cand.Record.Text)
		if text == "" {
			continue
		}
		if _, dup := seenText[text]; dup {
			continue
		}
		seenText[text] = struct{}{}

		url := cand.Record.SourceURL
		if url != "" {
			if i, ok := byURL[url]; ok {
				blocks[i].text = blocks[i].text + "\n" + text
				continue
			}
			byURL[url] = len(blocks)
		}
		blocks = append(blocks, evidenceBlock{
			url:      url,
			category: cand.Record.Category,
			text:     text,
		})
	}
	return blocks
}

var (
	hoursHintPattern = regexp.MustCompile(`\b\d{1,2}:\d{2}\b`)
	priceHintPattern = regexp.MustCompile(`\$\s?\d|\b\d+\s?(?:dollar|euro|usd|eur)s?\b`)
	phoneHintPattern = regexp.MustCompile(`\+?\d[\d\s-]{7,}\d`)
)

// infoHints labels the fact types a block contains, giving the generator a
// cross-reference signal for which block answers which part of the question.
func infoHints(text string) []string {
	lower := strings.ToLower(text)
	var hints []string
	if hoursHintPattern.MatchString(lower) {
		hints = append(hints, "hours")
	}
	if priceHintPattern.MatchString(lower) {
		hints = append(hints, "prices")
	}
	if phoneHintPattern.MatchString(lower) {
		hints = append(hints, "phone")
	}
	return hints
}

func (c *Composer) buildPrompt(query string, blocks []evidenceBlock) string {
	var evidence strings.Builder
	for i, b := range blocks {
		evidence.WriteString(fmt.Sprintf("[%d] source=%s category=%s", i+1, b.url, b.category))
		if hints := infoHints(b.text); len(hints) > 0 {
			evidence.WriteString(" contains=" + strings.Join(hints, ","))
		}
		evidence.WriteString("\n" + b.text + "\n\n")
	}

	return fmt.Sprintf(`You are a hotel concierge. Answer the guest's question using ONLY the numbered evidence below.

Rules:
- Use only facts stated in the evidence. Never invent times, prices, or names.
- Do not use hedging words such as "about" or "approximately" unless the evidence itself uses them.
- Do not ask the guest follow-up questions.
- End your reply with a single line "REFS: n,m" listing the evidence numbers you used.

Question:
%s

Evidence:
%s`, query, evidence.String())
}

// parseReferenceList splits the trailing REFS line from the visible answer.
// A missing or unparseable line returns nil refs; the caller then credits
// every admitted evidence item so attribution is never dropped silently.
func parseReferenceList(raw string) (string, []int) {
	lines := strings.Split(strings.TrimSpace(raw), "\n")

	var refs []int
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		if !strings.HasPrefix(upper, "REFS:") {
			kept = append(kept, line)
			continue
		}
		for _, part := range strings.Split(trimmed[len("REFS:"):], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err == nil && n > 0 {
				refs = append(refs, n)
			}
		}
	}
	return strings.Join(kept, "\n"), refs
}

func resolveBlockSources(blocks []evidenceBlock, refs []int) []string {
	urls := make([]string, 0, len(blocks))
	seen := make(map[string]struct{})
	add := func(url string) {
		if url == "" {
			return
		}
		if _, dup := seen[url]; dup {
			return
		}
		seen[url] = struct{}{}
		urls = append(urls, url)
	}

	if len(refs) == 0 {
		for _, b := range blocks {
			add(b.url)
		}
		return urls
	}

	for _, ref := range refs {
		if ref >= 1 && ref <= len(blocks) {
			add(blocks[ref-1].url)
		}
	}
	if len(urls) == 0 {
		for _, b := range blocks {
			add(b.url)
		}
	}
	return urls
}

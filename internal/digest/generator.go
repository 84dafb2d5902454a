// Package digest derives the two reduced tiers of a document from its raw
// text: a terse summary (tier 0) and a structured overview (tier 1). The
// reduction is deterministic, rule-based line heuristics and truncation
// rather than learned summarization, so regenerating a digest from
// unchanged text always yields byte-identical output.
package digest

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultTier0Max bounds the summary length in runes.
	DefaultTier0Max = 100
	// DefaultTier1Max bounds the overview length in runes.
	DefaultTier1Max = 500

	maxKeyPoints      = 5
	shownKeyPoints    = 3
	maxShownSections  = 4
	maxFallbackParas  = 2
	keyPointMinRunes  = 10
	sectionBodyRunes  = 10
	titleMaxRunes     = 50
	contentMinRunes   = 20
	paragraphMinRunes = 20
)

// keyPointPatterns marks a line as worth surfacing in the overview: list
// items, numbered items, headings, and a fixed importance/status
// vocabulary. Evaluated in order; any match qualifies the line.
var keyPointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[-*•]`),
	regexp.MustCompile(`^\d+\.`),
	regexp.MustCompile(`^#+\s`),
	regexp.MustCompile(`(?i)\b(?:TODO|FIXME|IMPORTANT|NOTE)\b`),
	regexp.MustCompile(`决策|重要|完成|进行中|阻塞`),
}

// Config bounds the generated tiers.
type Config struct {
	// Tier0Max is the maximum summary length in runes.
	Tier0Max int
	// Tier1Max is the maximum overview length in runes.
	Tier1Max int
}

// DefaultConfig returns the standard tier bounds.
func DefaultConfig() Config {
	return Config{
		Tier0Max: DefaultTier0Max,
		Tier1Max: DefaultTier1Max,
	}
}

// Validate rejects bounds that cannot produce a usable digest.
func (c Config) Validate() error {
	if c.Tier0Max <= 0 {
		return fmt.Errorf("tier0 max chars must be positive, got %d", c.Tier0Max)
	}
	if c.Tier1Max <= 0 {
		return fmt.Errorf("tier1 max chars must be positive, got %d", c.Tier1Max)
	}
	return nil
}

// Metadata describes how much a digest reduced the source text. Sizes are
// bytes; ratios are compressed/original (0.05 means 5% of the source).
type Metadata struct {
	OriginalSize  int       `json:"original_size"`
	SummarySize   int       `json:"summary_size"`
	OverviewSize  int       `json:"overview_size"`
	SummaryRatio  float64   `json:"summary_ratio"`
	OverviewRatio float64   `json:"overview_ratio"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Digest is the derived artifact of a document: the two reduced tiers plus
// reduction metadata. Tier 2 is the source text itself and is never copied
// in here.
type Digest struct {
	Summary  string   `json:"summary"`
	Overview string   `json:"overview"`
	Metadata Metadata `json:"metadata"`
}

// Generator produces digests under configured tier bounds.
type Generator struct {
	cfg Config
}

// NewGenerator creates a generator, falling back to default bounds for
// zero-valued config fields.
func NewGenerator(cfg Config) *Generator {
	if cfg.Tier0Max == 0 {
		cfg.Tier0Max = DefaultTier0Max
	}
	if cfg.Tier1Max == 0 {
		cfg.Tier1Max = DefaultTier1Max
	}
	return &Generator{cfg: cfg}
}

// Generate derives both reduced tiers from text.
func (g *Generator) Generate(text string) Digest {
	now := time.Now().UTC()
	summary := g.Tier0(text)
	overview := g.Tier1(text)

	meta := Metadata{
		OriginalSize: len(text),
		SummarySize:  len(summary),
		OverviewSize: len(overview),
		GeneratedAt:  now,
	}
	if meta.OriginalSize > 0 {
		meta.SummaryRatio = float64(meta.SummarySize) / float64(meta.OriginalSize)
		meta.OverviewRatio = float64(meta.OverviewSize) / float64(meta.OriginalSize)
	}

	return Digest{
		Summary:  summary,
		Overview: overview,
		Metadata: meta,
	}
}

// Tier0 produces the terse summary: a title candidate (first heading, or
// the first short line) joined with the first substantial content line.
// Empty input yields the empty string; there are no failure modes.
func (g *Generator) Tier0(text string) string {
	var title, firstContent string

	for _, line := range trimmedLines(text) {
		if after, ok := strings.CutPrefix(line, "# "); ok {
			title = strings.TrimSpace(after)
		} else if title == "" && utf8.RuneCountInString(line) < titleMaxRunes {
			title = line
		}

		if firstContent == "" && utf8.RuneCountInString(line) > contentMinRunes {
			firstContent = headRunes(line, 100)
			break
		}
	}

	var summary string
	switch {
	case title != "" && firstContent != "":
		summary = title + " | " + headRunes(firstContent, 50) + "..."
	case title != "":
		summary = headRunes(title, 80) + "..."
	case firstContent != "":
		summary = headRunes(firstContent, 80) + "..."
	default:
		summary = text
		if utf8.RuneCountInString(text) > 80 {
			summary = headRunes(text, 80) + "..."
		}
	}

	return headRunes(summary, g.cfg.Tier0Max)
}

// Tier1 produces the structured overview: a key-points block and a
// sections block, falling back to leading paragraphs when the text has no
// recognizable structure. The fallback chain keeps the overview non-empty
// for any non-trivial input.
func (g *Generator) Tier1(text string) string {
	keyPoints := g.KeyPoints(text, maxKeyPoints)
	sections := extractSections(text)

	var parts []string

	if len(keyPoints) > 0 {
		parts = append(parts, "Key points:")
		for i, point := range keyPoints[:min(shownKeyPoints, len(keyPoints))] {
			parts = append(parts, fmt.Sprintf("  %d. %s", i+1, headRunes(point, 80)))
		}
	}

	if len(sections) > 0 {
		parts = append(parts, "Sections:")
		for _, section := range sections[:min(maxShownSections, len(sections))] {
			parts = append(parts, "  • "+headRunes(section, 100))
		}
	}

	if len(parts) == 0 {
		paras := paragraphs(text)
		if len(paras) > 0 {
			parts = append(parts, "Main content:")
			for _, para := range paras[:min(maxFallbackParas, len(paras))] {
				parts = append(parts, "  • "+headRunes(para, 150)+"...")
			}
		}
	}

	return headRunes(strings.Join(parts, "\n"), g.cfg.Tier1Max)
}

// KeyPoints returns up to max lines that qualify as key points, in
// document order. Scanning stops once capacity is reached.
func (g *Generator) KeyPoints(text string, max int) []string {
	var points []string
	for _, line := range trimmedLines(text) {
		if utf8.RuneCountInString(line) < keyPointMinRunes {
			continue
		}
		if matchesKeyPoint(line) {
			points = append(points, line)
			if len(points) >= max {
				break
			}
		}
	}
	return points
}

func matchesKeyPoint(line string) bool {
	for _, pattern := range keyPointPatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}

// extractSections accumulates section digests: a "## " heading opens a
// section; body lines append truncated; any heading closes the current
// section, and a top-level "# " closes without opening a new one.
func extractSections(text string) []string {
	var sections []string
	var current strings.Builder
	open := false

	flush := func() {
		if open {
			sections = append(sections, current.String())
		}
		current.Reset()
	}

	for _, line := range trimmedLines(text) {
		switch {
		case strings.HasPrefix(line, "## "):
			flush()
			current.WriteString(strings.TrimPrefix(line, "## "))
			current.WriteString(": ")
			open = true
		case strings.HasPrefix(line, "# "):
			flush()
			open = false
		case open && utf8.RuneCountInString(line) > sectionBodyRunes:
			current.WriteString(headRunes(line, 100))
			current.WriteString("... ")
		}
	}
	flush()

	return sections
}

// paragraphs splits on blank lines and keeps substantial paragraphs.
func paragraphs(text string) []string {
	var paras []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) > paragraphMinRunes {
			paras = append(paras, p)
		}
	}
	return paras
}

// trimmedLines yields the trimmed, non-empty lines of text.
func trimmedLines(text string) []string {
	raw := strings.Split(strings.TrimSpace(text), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// headRunes truncates s to at most n runes.
func headRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Package extract reduces raw page markup to bounded plain text for model
// consumption. Everything in here is a pure function: deterministic, no side
// effects, and extraction never raises; any internal failure yields "".
package extract

import (
	"regexp"
	"strings"
)

// MaxTextLength bounds extractor output.
const MaxTextLength = 10000

var (
	scriptRe   = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	styleRe    = regexp.MustCompile(`(?is)<style\b.*?</style>`)
	noscriptRe = regexp.MustCompile(`(?is)<noscript\b.*?</noscript>`)
	tagRe      = regexp.MustCompile(`<[^>]+>`)
	entityRe   = regexp.MustCompile(`(?i)&[a-z]+;`)
	spaceRe    = regexp.MustCompile(`\s+`)

	headingRe = regexp.MustCompile(`(?i)<h1[^>]*>([^<]+)</h1>`)

	// Content harvest patterns for comment-thread markup: paragraphs,
	// comment-classed containers, generic spans, and any bare text run of
	// 20+ characters between tags.
	threadPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<p[^>]*>([^<]+)</p>`),
		regexp.MustCompile(`(?i)<div[^>]*class="[^"]*comment[^"]*"[^>]*>([^<]+)<`),
		regexp.MustCompile(`(?i)<span[^>]*>([^<]+)</span>`),
		regexp.MustCompile(`>([^<]{20,})<`),
	}

	// Sites whose markup is dominated by comment threads and needs the
	// multi-pattern harvest instead of a flat tag strip.
	threadSites = []string{
		"reddit.com",
		"news.ycombinator.com",
	}
)

var namedEntities = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&#39;", "'",
)

// Text reduces raw markup to plain text, capped at MaxTextLength.
func Text(html string) (text string) {
	// Extraction must never raise; malformed markup yields empty text.
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	clean := scriptRe.ReplaceAllString(html, " ")
	clean = styleRe.ReplaceAllString(clean, " ")
	clean = noscriptRe.ReplaceAllString(clean, " ")

	if isThreadSite(html) {
		return truncate(threadText(clean))
	}

	flat := tagRe.ReplaceAllString(clean, " ")
	flat = decodeEntities(flat)
	flat = spaceRe.ReplaceAllString(flat, " ")
	return truncate(strings.TrimSpace(flat))
}

func isThreadSite(html string) bool {
	for _, site := range threadSites {
		if strings.Contains(html, site) {
			return true
		}
	}
	return false
}

// threadText harvests text from comment-thread markup: the first heading as a
// pseudo-title, then every pattern match, deduplicated by exact string.
func threadText(clean string) string {
	var parts []string
	seen := make(map[string]bool)

	add := func(s string) {
		s = strings.TrimSpace(s)
		if len(s) > 5 && !seen[s] {
			seen[s] = true
			parts = append(parts, s)
		}
	}

	if m := headingRe.FindStringSubmatch(clean); m != nil {
		add(m[1])
	}

	for _, pattern := range threadPatterns {
		for _, m := range pattern.FindAllStringSubmatch(clean, -1) {
			add(m[1])
		}
	}

	text := decodeEntities(strings.Join(parts, " "))
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func decodeEntities(s string) string {
	s = namedEntities.Replace(s)
	// Unknown named entities become whitespace rather than surviving as noise.
	return entityRe.ReplaceAllString(s, " ")
}

func truncate(s string) string {
	if len(s) > MaxTextLength {
		return s[:MaxTextLength]
	}
	return s
}

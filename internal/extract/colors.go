package extract

import (
	"regexp"
	"strings"
)

var colorValueRe = regexp.MustCompile(`(?i)(#[0-9a-f]{3,8}|rgb\([^)]+\)|rgba\([^)]+\)|hsl\([^)]+\)|hsla\([^)]+\)|var\(--[^)]+\))`)

var colorProperties = []string{"color", "background", "border", "shadow", "gradient"}

// ColorRules filters a stylesheet down to the lines that carry color values
// on visually relevant properties. The result feeds the theme prompt; pages
// are recognized later by these colors.
func ColorRules(css string) string {
	var rules []string
	for _, line := range strings.Split(css, "\n") {
		if !colorValueRe.MatchString(line) {
			continue
		}
		for _, prop := range colorProperties {
			if strings.Contains(line, prop) {
				rules = append(rules, line)
				break
			}
		}
	}
	return strings.Join(rules, "\n")
}

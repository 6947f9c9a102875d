package extract

import (
	"regexp"
	"slices"
	"strings"

	"github.com/catchsmart/catchsmart/internal/domain"
)

const lureConfidence = 0.9

const (
	UnknownLure = "Unknown lure"
	UnknownItem = "Unknown item"
)

var (
	lureSize  = regexp.MustCompile(`(?i)(\d+(?:cm|mm|g))`)
	lureColor = regexp.MustCompile(`(?i)(rot|blau|grün|gelb|schwarz|weiß|silber|gold|red|blue|green|yellow|black|white|silver|orange|pink|chartreuse|firetiger|perch|pike)`)
	// Longer markers come first so "Modell: X" yields "X" rather than "l".
	// Markers may sit inside a word: "Prototype 5" yields "5".
	lureModel = regexp.MustCompile(`(?i)(?:modell|model|type|typ)[\s:]*([A-Za-z0-9\-]+)`)
)

// lureKinds is checked in order; the first family with a matching label
// decorates the name.
var lureKinds = []struct {
	labels []string
	suffix string
}{
	{labels: []string{"spinner", "spinnerbait"}, suffix: " (Spinner)"},
	{labels: []string{"wobbler", "crankbait"}, suffix: " (Wobbler)"},
}

// LureItems extracts the single photographed item. It always returns exactly
// one item, with a placeholder name when the text is empty.
func LureItems(text string, labels, logos []string) []domain.ExtractedItem {
	item := domain.ExtractedItem{
		Name:       nameOrPlaceholder(firstLine(text), UnknownLure),
		Brand:      brandOf(logos, text),
		Confidence: lureConfidence,
	}
	if m := lureSize.FindStringSubmatch(text); m != nil {
		item.Size = m[1]
	}
	if m := lureColor.FindStringSubmatch(text); m != nil {
		item.Color = m[1]
	}
	if m := lureModel.FindStringSubmatch(text); m != nil {
		item.Model = m[1]
	}

	lower := make([]string, len(labels))
	for i, l := range labels {
		lower[i] = strings.ToLower(strings.TrimSpace(l))
	}
	for _, kind := range lureKinds {
		if slices.ContainsFunc(kind.labels, func(l string) bool { return slices.Contains(lower, l) }) {
			item.Name += kind.suffix
			break
		}
	}

	return []domain.ExtractedItem{item}
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func nameOrPlaceholder(name, placeholder string) string {
	if name == "" {
		return placeholder
	}
	return name
}

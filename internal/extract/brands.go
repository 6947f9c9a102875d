package extract

import "strings"

// knownBrands is matched case-insensitively, first hit in this order wins.
var knownBrands = []string{
	"Rapala", "Mepps", "Savage Gear", "Abu Garcia", "Shimano", "Daiwa",
	"Berkley", "Strike King", "Storm", "Blue Fox", "Panther Martin",
	"Yo-Zuri", "Lucky Craft", "Megabass", "Deps", "Jackall", "Balzer",
	"Spro", "Fox Rage", "Westin", "Illex", "Gunki", "Salmo", "Dam",
	"Decathlon", "Caperlan", "Penn", "Okuma", "Mitchell", "Quantum",
}

// BrandIn returns the first known brand that occurs anywhere in text.
func BrandIn(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, b := range knownBrands {
		if strings.Contains(lower, strings.ToLower(b)) {
			return b, true
		}
	}
	return "", false
}

// brandOf prefers the first detected logo over a lexicon match.
func brandOf(logos []string, text string) string {
	if len(logos) > 0 && strings.TrimSpace(logos[0]) != "" {
		return logos[0]
	}
	b, _ := BrandIn(text)
	return b
}

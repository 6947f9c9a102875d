package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/catchsmart/catchsmart/internal/domain"
)

const receiptConfidence = 0.8

var (
	// productLine captures "<name> <price>" where price uses a comma or dot
	// decimal separator, e.g. "Rapala Wobbler 12,99".
	productLine = regexp.MustCompile(`([A-Za-z\s\-]+\w+)\s+(\d+[.,]\d{2})`)

	receiptSize  = regexp.MustCompile(`(?i)(\d+(?:cm|mm|g|kg|lb|oz))`)
	receiptColor = regexp.MustCompile(`(?i)(rot|blau|grün|gelb|schwarz|weiß|silber|gold|red|blue|green|yellow|black|white|silver|orange|pink|chartreuse)`)
)

var fishingKeywords = []string{
	"wobbler", "spinner", "köder", "lure", "rute", "rod", "rolle", "reel",
	"schnur", "line", "haken", "hook", "bait",
}

// isProductCandidate reports whether a receipt line mentions fishing gear or
// a known brand.
func isProductCandidate(line string) bool {
	lower := strings.ToLower(line)
	for _, k := range fishingKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	_, ok := BrandIn(line)
	return ok
}

// ReceiptItems parses priced fishing-gear lines out of receipt text. Lines
// without a price are not product lines. Order follows the text and repeated
// lines yield repeated items.
func ReceiptItems(text string, logos []string) []domain.ExtractedItem {
	items := make([]domain.ExtractedItem, 0)
	for _, line := range strings.Split(text, "\n") {
		if !isProductCandidate(line) {
			continue
		}
		m := productLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		productName := m[1]
		price, err := parsePrice(m[2])
		if err != nil {
			continue
		}

		item := domain.ExtractedItem{
			Name:       nameOrPlaceholder(strings.TrimSpace(productName), UnknownItem),
			Price:      &price,
			Brand:      brandOf(logos, productName),
			Confidence: receiptConfidence,
		}
		if sm := receiptSize.FindStringSubmatch(productName); sm != nil {
			item.Size = sm[1]
		}
		if cm := receiptColor.FindStringSubmatch(productName); cm != nil {
			item.Color = cm[1]
		}
		items = append(items, item)
	}
	return items
}

// parsePrice reads "12,99" or "12.99".
func parsePrice(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

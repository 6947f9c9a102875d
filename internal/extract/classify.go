package extract

import (
	"strings"

	"github.com/catchsmart/catchsmart/internal/domain"
)

var receiptKeywords = []string{"rechnung", "quittung", "receipt", "invoice", "order"}

var receiptLabels = []string{"receipt", "document"}

// Classify decides whether the OCR text and labels describe a purchase
// receipt or a single photographed item. Any keyword or label hit means
// receipt.
func Classify(fullText string, labels []string) domain.DocumentType {
	lower := strings.ToLower(fullText)
	for _, k := range receiptKeywords {
		if strings.Contains(lower, k) {
			return domain.DocumentReceipt
		}
	}
	for _, l := range labels {
		for _, r := range receiptLabels {
			if strings.EqualFold(strings.TrimSpace(l), r) {
				return domain.DocumentReceipt
			}
		}
	}
	return domain.DocumentLure
}

// Package extract turns OCR text and image annotations into equipment items.
// Everything here is a pure function over its inputs.
package extract

import "github.com/catchsmart/catchsmart/internal/domain"

// Extract classifies the annotations and runs the matching extraction path.
func Extract(fullText string, labels, logos []string) *domain.VisionResult {
	docType := Classify(fullText, labels)

	var items []domain.ExtractedItem
	if docType == domain.DocumentReceipt {
		items = ReceiptItems(fullText, logos)
	} else {
		items = LureItems(fullText, labels, logos)
	}

	return &domain.VisionResult{
		Type:    docType,
		Items:   items,
		RawText: fullText,
	}
}

package vision

import "context"

// mockText is the canned OCR text served when no real backend is usable.
const mockText = "Rapala Original Floater F11 Silver 11cm"

// MockAnnotations returns the fixed annotations used in degraded mode.
func MockAnnotations() *Annotations {
	return NewAnnotations(mockText, []string{"fishing bait"}, []string{"Rapala"}, []string{"fishing lure"})
}

// MockAnnotator always returns MockAnnotations. It is used when no vision API
// key is configured.
type MockAnnotator struct{}

func (MockAnnotator) Annotate(context.Context, []byte, string) (*Annotations, error) {
	return MockAnnotations(), nil
}

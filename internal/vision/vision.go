package vision

import (
	"context"
	"fmt"
	"strings"
)

// AnnotationPrompt is used by LLM-backed annotators to obtain the same
// annotation lists the Google Vision API returns.
const AnnotationPrompt = `You are an OCR and image annotation service for fishing equipment photos.
Return ONLY a JSON object with these keys:
"text": all text visible in the image, line by line, separated by \n;
"labels": short lower-case labels describing the image (e.g. "fishing bait", "receipt", "spinner");
"logos": brand logos you can identify;
"objects": objects you can locate.
Use empty strings or empty arrays when nothing is found.`

// Annotator produces OCR text and detections for an image.
type Annotator interface {
	Annotate(ctx context.Context, image []byte, mimeType string) (*Annotations, error)
}

// Annotations is produced once per image and treated as immutable.
type Annotations struct {
	FullText string
	Labels   []string
	Logos    []string
	Objects  []string
}

// UpstreamError reports a failed or malformed response from an annotation
// backend.
type UpstreamError struct {
	Backend    string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned status %d: %v", e.Backend, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Backend, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NewAnnotations normalises raw detections: labels are lower-cased and
// de-duplicated, empty entries are dropped.
func NewAnnotations(text string, labels, logos, objects []string) *Annotations {
	a := &Annotations{
		FullText: text,
		Labels:   make([]string, 0, len(labels)),
		Logos:    nonEmpty(logos),
		Objects:  nonEmpty(objects),
	}
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		a.Labels = append(a.Labels, l)
	}
	return a
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package claude

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/catchsmart/catchsmart/internal/vision"
)

const backendName = "claude"

// annotationPayload is the JSON shape requested by vision.AnnotationPrompt.
type annotationPayload struct {
	Text    string   `json:"text"`
	Labels  []string `json:"labels"`
	Logos   []string `json:"logos"`
	Objects []string `json:"objects"`
}

// Annotator asks a Claude model to act as an OCR/label/logo detector.
type Annotator struct {
	client *anthropic.Client
	model  string
}

func NewAnnotator(apiKey, model string, opts ...anthropic.ClientOption) *Annotator {
	return &Annotator{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

func (a *Annotator) Annotate(ctx context.Context, image []byte, mimeType string) (*vision.Annotations, error) {
	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(a.model),
		// A receipt's full text plus label lists fits comfortably.
		MaxTokens: 2048,
		Messages: []anthropic.Message{{
			Role: anthropic.RoleUser,
			Content: []anthropic.MessageContent{
				anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
					anthropic.MessagesContentSourceTypeBase64,
					normaliseMIME(mimeType),
					base64.StdEncoding.EncodeToString(image),
				)),
				anthropic.NewTextMessageContent(vision.AnnotationPrompt),
			},
		}},
	})
	if err != nil {
		return nil, &vision.UpstreamError{Backend: backendName, Err: err}
	}

	var responseText string
	for _, c := range resp.Content {
		if c.Type == anthropic.MessagesContentTypeText {
			responseText = c.GetText()
			break
		}
	}

	payload, err := parsePayload(responseText)
	if err != nil {
		return nil, &vision.UpstreamError{Backend: backendName, Err: err}
	}
	return vision.NewAnnotations(payload.Text, payload.Labels, payload.Logos, payload.Objects), nil
}

// parsePayload decodes the JSON object in the model's reply, tolerating
// surrounding prose or code fences.
func parsePayload(text string) (*annotationPayload, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, errors.New("no JSON object in model response")
	}
	var p annotationPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &p); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}
	return &p, nil
}

// normaliseMIME maps browser MIME types to the values the Anthropic API
// accepts; anything else is sent as jpeg.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}

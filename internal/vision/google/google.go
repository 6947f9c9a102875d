package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/catchsmart/catchsmart/internal/vision"
)

const (
	DefaultAPIURL = "https://vision.googleapis.com/v1/images:annotate"
	backendName   = "google vision"
)

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image struct {
		Content string `json:"content"`
	} `json:"image"`
	Features []feature `json:"features"`
}

var features = []feature{
	{Type: "TEXT_DETECTION", MaxResults: 10},
	{Type: "LABEL_DETECTION", MaxResults: 10},
	{Type: "LOGO_DETECTION", MaxResults: 5},
	{Type: "OBJECT_LOCALIZATION", MaxResults: 10},
}

type entity struct {
	Description string `json:"description"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// annotateResponse lists only the fields we read; anything missing decodes
// to its zero value.
type annotateResponse struct {
	Responses []struct {
		TextAnnotations  []entity `json:"textAnnotations"`
		LabelAnnotations []entity `json:"labelAnnotations"`
		LogoAnnotations  []entity `json:"logoAnnotations"`
		Objects          []struct {
			Name string `json:"name"`
		} `json:"localizedObjectAnnotations"`
		Error *apiError `json:"error"`
	} `json:"responses"`
	Error *apiError `json:"error"`
}

// Annotator calls the Google Cloud Vision REST API with an API key.
type Annotator struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewAnnotator(apiKey, baseURL string) *Annotator {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Annotator{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

func (a *Annotator) Annotate(ctx context.Context, image []byte, _ string) (*vision.Annotations, error) {
	req := imageRequest{Features: features}
	req.Image.Content = base64.StdEncoding.EncodeToString(image)

	payload, err := json.Marshal(annotateRequest{Requests: []imageRequest{req}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := a.baseURL + "?key=" + url.QueryEscape(a.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		// The URL carries the key; report the transport error without it.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, &vision.UpstreamError{Backend: backendName, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close google vision response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &vision.UpstreamError{Backend: backendName, StatusCode: resp.StatusCode, Err: errorMessage(resp.Body)}
	}

	var body annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &vision.UpstreamError{Backend: backendName, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if len(body.Responses) == 0 {
		return nil, &vision.UpstreamError{Backend: backendName, Err: errors.New("empty responses array")}
	}

	r := body.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return nil, &vision.UpstreamError{Backend: backendName, Err: errors.New(r.Error.Message)}
	}

	// The first text annotation is the full text block; later ones are words.
	var fullText string
	if len(r.TextAnnotations) > 0 {
		fullText = r.TextAnnotations[0].Description
	}
	objects := make([]string, 0, len(r.Objects))
	for _, o := range r.Objects {
		objects = append(objects, o.Name)
	}

	return vision.NewAnnotations(fullText, descriptions(r.LabelAnnotations), descriptions(r.LogoAnnotations), objects), nil
}

func descriptions(in []entity) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		out = append(out, e.Description)
	}
	return out
}

// errorMessage extracts error.message from an error body, falling back to the
// raw body.
func errorMessage(r io.Reader) error {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read error body: %w", err)
	}
	var body annotateResponse
	if json.Unmarshal(raw, &body) == nil && body.Error != nil && body.Error.Message != "" {
		return errors.New(body.Error.Message)
	}
	return fmt.Errorf("%s", bytes.TrimSpace(raw))
}

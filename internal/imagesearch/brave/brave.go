package brave

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/catchsmart/catchsmart/internal/domain"
)

const DefaultBaseURL = "https://api.search.brave.com/res/v1"

type imageSearchResponse struct {
	Results []struct {
		URL       string `json:"url"`
		Source    string `json:"source"`
		Thumbnail struct {
			Src string `json:"src"`
		} `json:"thumbnail"`
	} `json:"results"`
}

// Client is a Brave image search client.
type Client struct {
	httpClient *resty.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: resty.New().
			SetDebug(false).
			SetBaseURL(baseURL).
			SetTimeout(30*time.Second).
			SetHeaders(map[string]string{
				"Accept":               "application/json",
				"X-Subscription-Token": apiKey,
			}),
	}
}

func (c *Client) SearchImages(ctx context.Context, query string, count int, safety string) ([]domain.ImageSearchResult, error) {
	result := &imageSearchResponse{}
	_, err := handleError(c.httpClient.R().
		SetContext(ctx).
		SetResult(result).
		SetQueryParams(map[string]string{
			"q":          query,
			"count":      strconv.Itoa(count),
			"safesearch": safety,
		}).
		Get("/images/search"))
	if err != nil {
		return nil, err
	}

	out := make([]domain.ImageSearchResult, 0, len(result.Results))
	for _, r := range result.Results {
		res := domain.ImageSearchResult{
			URL:          r.URL,
			ThumbnailURL: r.Thumbnail.Src,
			SourceDomain: r.Source,
		}
		if u, err := url.Parse(r.URL); err == nil && u.Hostname() != "" {
			res.SourceDomain = u.Hostname()
		}
		out = append(out, res)
	}
	return out, nil
}

// handleError turns >399 responses into errors; resty reports them as
// successful otherwise.
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if res.IsError() {
		return res, fmt.Errorf("brave search failed: %s (status: %d)", res.Status(), res.StatusCode())
	}
	return res, nil
}

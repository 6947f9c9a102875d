package domain

import "time"

// DocumentType is the classifier's verdict for an uploaded image.
type DocumentType string

const (
	DocumentLure    DocumentType = "lure"
	DocumentReceipt DocumentType = "receipt"
)

// User is the authenticated caller.
type User struct {
	ID    string
	Email string
}

// UploadedImage holds the raw upload for the duration of one request.
type UploadedImage struct {
	OwnerID          string
	Data             []byte
	MimeType         string
	OriginalFilename string
}

// ExtractedItem is one piece of equipment pulled out of an image.
// Confidence is a hand-picked constant per extraction path, not a computed
// probability.
type ExtractedItem struct {
	Name       string   `json:"name"`
	Brand      string   `json:"brand,omitempty"`
	Model      string   `json:"model,omitempty"`
	Color      string   `json:"color,omitempty"`
	Size       string   `json:"size,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	Quantity   *int     `json:"quantity,omitempty"`
	ImageURL   string   `json:"imageUrl,omitempty"`
	Confidence float64  `json:"confidence"`
}

// VisionResult is the pipeline's structured output for one image.
type VisionResult struct {
	Type    DocumentType    `json:"type"`
	Items   []ExtractedItem `json:"items"`
	RawText string          `json:"rawText,omitempty"`
}

// ImageSearchResult is a single hit from the image search service.
type ImageSearchResult struct {
	URL          string
	ThumbnailURL string
	SourceDomain string
}

// Upload is a recorded pipeline run.
type Upload struct {
	ID          int64           `json:"id"`
	UserID      string          `json:"-"`
	StoragePath string          `json:"-"`
	ImageURL    string          `json:"imageUrl"`
	Type        DocumentType    `json:"type"`
	RawText     string          `json:"rawText,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	Items       []ExtractedItem `json:"items"`
}

// StoredItem is an extracted item as persisted in upload history.
type StoredItem struct {
	ID       int64 `json:"id"`
	UploadID int64 `json:"uploadId"`
	ExtractedItem
	CreatedAt time.Time `json:"createdAt"`
}

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catchsmart/catchsmart/internal/auth"
	"github.com/catchsmart/catchsmart/internal/db"
	"github.com/catchsmart/catchsmart/internal/imagesearch"
	"github.com/catchsmart/catchsmart/internal/imagesearch/brave"
	"github.com/catchsmart/catchsmart/internal/photostore/local"
	"github.com/catchsmart/catchsmart/internal/service"
	"github.com/catchsmart/catchsmart/internal/store"
	"github.com/catchsmart/catchsmart/internal/vision"
	"github.com/catchsmart/catchsmart/internal/web"
)

const jwtSecret = "integration-secret-integration-secret"

// minimalJPEG is 512 bytes with the JPEG magic bytes header followed by zeros.
var minimalJPEG = func() []byte {
	b := make([]byte, 512)
	b[0] = 0xFF
	b[1] = 0xD8
	b[2] = 0xFF
	b[3] = 0xE0
	return b
}()

// recordingVision captures the image bytes passed to it and returns
// pre-configured annotations or an error.
type recordingVision struct {
	mu          sync.Mutex
	lastBytes   []byte
	annotations *vision.Annotations
	err         error
}

func (r *recordingVision) Annotate(_ context.Context, image []byte, _ string) (*vision.Annotations, error) {
	r.mu.Lock()
	r.lastBytes = image
	r.mu.Unlock()
	return r.annotations, r.err
}

func (r *recordingVision) LastBytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastBytes
}

// countingPhotoStore wraps the local store and counts writes.
type countingPhotoStore struct {
	*local.LocalPhotoStore
	mu   sync.Mutex
	puts int
}

func (c *countingPhotoStore) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error) {
	c.mu.Lock()
	c.puts++
	c.mu.Unlock()
	return c.LocalPhotoStore.Put(ctx, key, contentType, r, size)
}

func (c *countingPhotoStore) Puts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

type testStack struct {
	srv      *httptest.Server
	photos   *countingPhotoStore
	photoDir string
	vision   *recordingVision
}

// newTestServer wires a real web.Server against in-memory SQLite, local photo
// storage, a fake Brave endpoint and the given vision stub.
func newTestServer(t *testing.T, vis *recordingVision) *testStack {
	t.Helper()
	database, err := db.OpenForTesting(t.Name())
	require.NoError(t, err)

	braveSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"results":[
			{"url":"https://random.example/a.jpg","thumbnail":{"src":"https://imgs.example/a-thumb.jpg"}},
			{"url":"https://www.rapala.com/f11.jpg","thumbnail":{"src":"https://imgs.example/rapala-thumb.jpg"}}
		]}`)
	}))

	photoDir := t.TempDir()
	ls, err := local.NewLocalPhotoStore(photoDir, "http://catch.test")
	require.NoError(t, err)
	photos := &countingPhotoStore{LocalPhotoStore: ls}

	resolver := imagesearch.NewResolver(brave.NewClient("test-key", braveSrv.URL), nil, nil, 0, slog.Default())
	svc := service.NewUploadService(
		photos,
		vis,
		resolver,
		store.NewUploadStore(database),
		store.NewItemStore(database),
		service.Options{VisionTimeout: time.Second, SearchTimeout: time.Second, SearchConcurrency: 2},
		slog.Default(),
	)
	handler := web.NewServer(svc, auth.NewVerifier(jwtSecret, ""), photos,
		web.Options{MaxUploadBytes: 64 << 10, Bucket: "equipment-images"}, slog.Default())

	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		braveSrv.Close()
		_ = database.Close()
	})
	return &testStack{srv: srv, photos: photos, photoDir: photoDir, vision: vis}
}

func accessToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@example.com",
		"aud":   "authenticated",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return token
}

// buildMultipartBody creates a multipart/form-data body with a "file" field.
func buildMultipartBody(t *testing.T, field string, imageData []byte) (body *bytes.Buffer, contentType string) {
	t.Helper()
	body = &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fw, err := w.CreateFormFile(field, "my lure.jpg")
	require.NoError(t, err)
	_, err = fw.Write(imageData)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func doRequest(t *testing.T, req *http.Request, token string) (*http.Response, []byte) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func upload(t *testing.T, stack *testStack, token, field string, data []byte) (*http.Response, []byte) {
	t.Helper()
	body, contentType := buildMultipartBody(t, field, data)
	req, err := http.NewRequest(http.MethodPost, stack.srv.URL+"/api/vision/process", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	return doRequest(t, req, token)
}

type processBody struct {
	Success  bool   `json:"success"`
	ImageURL string `json:"imageUrl"`
	Vision   struct {
		Type  string `json:"type"`
		Items []struct {
			Name     string   `json:"name"`
			Brand    string   `json:"brand"`
			Size     string   `json:"size"`
			Price    *float64 `json:"price"`
			ImageURL string   `json:"imageUrl"`
		} `json:"items"`
		RawText string `json:"rawText"`
	} `json:"vision"`
}

func TestIntegration_LurePhoto(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	stack := newTestServer(t, &recordingVision{
		annotations: vision.NewAnnotations("Rapala Original Floater F11 Silver 11cm", nil, nil, nil),
	})

	resp, body := upload(t, stack, accessToken(t, "user-1"), "file", minimalJPEG)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var got processBody
	require.NoError(t, json.Unmarshal(body, &got))
	assert.True(t, got.Success)
	assert.Regexp(t, `^http://catch\.test/photos/user-1/\d+-my_lure\.jpg$`, got.ImageURL)
	assert.Equal(t, "lure", got.Vision.Type)
	require.Len(t, got.Vision.Items, 1)
	assert.Equal(t, "Rapala Original Floater F11 Silver 11cm", got.Vision.Items[0].Name)
	assert.Equal(t, "Rapala", got.Vision.Items[0].Brand)
	assert.Equal(t, "11cm", got.Vision.Items[0].Size)
	assert.Equal(t, "https://imgs.example/rapala-thumb.jpg", got.Vision.Items[0].ImageURL)

	assert.Equal(t, minimalJPEG, stack.vision.LastBytes())
}

func TestIntegration_Receipt(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	stack := newTestServer(t, &recordingVision{
		annotations: vision.NewAnnotations("Angelshop Quittung Nr. 123\nMepps Aglia 6,99", nil, nil, nil),
	})

	resp, body := upload(t, stack, accessToken(t, "user-1"), "file", minimalJPEG)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var got processBody
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "receipt", got.Vision.Type)
	require.Len(t, got.Vision.Items, 1)
	assert.Contains(t, got.Vision.Items[0].Name, "Mepps Aglia")
	require.NotNil(t, got.Vision.Items[0].Price)
	assert.InDelta(t, 6.99, *got.Vision.Items[0].Price, 0.0001)
	assert.Contains(t, got.Vision.RawText, "Quittung")
}

func TestIntegration_Unauthenticated(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	stack := newTestServer(t, &recordingVision{annotations: vision.MockAnnotations()})

	resp, body := upload(t, stack, "", "file", minimalJPEG)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Unauthorized - Please log in again"}`, string(body))
	assert.Equal(t, 0, stack.photos.Puts())

	resp, _ = upload(t, stack, "not-a-token", "file", minimalJPEG)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, stack.photos.Puts())
}

func TestIntegration_VisionFailureDegrades(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	stack := newTestServer(t, &recordingVision{
		err: &vision.UpstreamError{Backend: "google", StatusCode: http.StatusTooManyRequests},
	})

	resp, body := upload(t, stack, accessToken(t, "user-1"), "file", minimalJPEG)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var got processBody
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "lure", got.Vision.Type)
	require.Len(t, got.Vision.Items, 1)
	assert.Equal(t, "Rapala", got.Vision.Items[0].Brand)
}

func TestIntegration_NoFile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	stack := newTestServer(t, &recordingVision{annotations: vision.MockAnnotations()})
	token := accessToken(t, "user-1")

	resp, body := upload(t, stack, token, "image", minimalJPEG)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"No file provided"}`, string(body))

	resp, _ = upload(t, stack, token, "file", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, stack.srv.URL+"/api/vision/process", nil)
	require.NoError(t, err)
	resp, _ = doRequest(t, req, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, 0, stack.photos.Puts())
}

func TestIntegration_FileTooLarge(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	stack := newTestServer(t, &recordingVision{annotations: vision.MockAnnotations()})

	big := make([]byte, 128<<10)
	copy(big, minimalJPEG)
	resp, body := upload(t, stack, accessToken(t, "user-1"), "file", big)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"File too large"}`, string(body))
	assert.Equal(t, 0, stack.photos.Puts())
}

func TestIntegration_StorageMisconfigured(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	stack := newTestServer(t, &recordingVision{annotations: vision.MockAnnotations()})
	// Remove the photo directory out from under the store.
	require.NoError(t, os.RemoveAll(stack.photoDir))

	resp, body := upload(t, stack, accessToken(t, "user-1"), "file", minimalJPEG)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), `Storage bucket \"equipment-images\" not found`)
}

func TestIntegration_PhotoServedAndHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	stack := newTestServer(t, &recordingVision{
		annotations: vision.NewAnnotations("Rechnung\nRapala Wobbler 12,99\nMepps Aglia 6,99", nil, nil, nil),
	})
	token := accessToken(t, "user-1")

	resp, body := upload(t, stack, token, "file", minimalJPEG)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var got processBody
	require.NoError(t, json.Unmarshal(body, &got))

	// The public URL resolves through /photos.
	photoPath := got.ImageURL[len("http://catch.test"):]
	req, err := http.NewRequest(http.MethodGet, stack.srv.URL+photoPath, nil)
	require.NoError(t, err)
	resp, photo := doRequest(t, req, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, minimalJPEG, photo)

	req, err = http.NewRequest(http.MethodGet, stack.srv.URL+"/api/vision/uploads?limit=5", nil)
	require.NoError(t, err)
	resp, body = doRequest(t, req, token)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var history struct {
		Uploads []struct {
			ID       int64  `json:"id"`
			ImageURL string `json:"imageUrl"`
			Type     string `json:"type"`
			Items    []struct {
				Name string `json:"name"`
			} `json:"items"`
		} `json:"uploads"`
	}
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history.Uploads, 1)
	assert.Equal(t, "receipt", history.Uploads[0].Type)
	assert.Equal(t, got.ImageURL, history.Uploads[0].ImageURL)
	assert.Len(t, history.Uploads[0].Items, 2)

	req, err = http.NewRequest(http.MethodGet, stack.srv.URL+"/api/vision/items?q=wobbler", nil)
	require.NoError(t, err)
	resp, body = doRequest(t, req, token)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var items struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(body, &items))
	require.Len(t, items.Items, 1)
	assert.Equal(t, "Rapala Wobbler", items.Items[0].Name)

	// Another user sees nothing.
	req, err = http.NewRequest(http.MethodGet, stack.srv.URL+"/api/vision/uploads", nil)
	require.NoError(t, err)
	resp, body = doRequest(t, req, accessToken(t, "user-2"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"uploads":[]}`, string(body))
}

func TestIntegration_HistoryRequiresAuth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	stack := newTestServer(t, &recordingVision{annotations: vision.MockAnnotations()})

	for _, path := range []string{"/api/vision/uploads", "/api/vision/items?q=x"} {
		req, err := http.NewRequest(http.MethodGet, stack.srv.URL+path, nil)
		require.NoError(t, err)
		resp, _ := doRequest(t, req, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestIntegration_Healthz(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	stack := newTestServer(t, &recordingVision{annotations: vision.MockAnnotations()})

	req, err := http.NewRequest(http.MethodGet, stack.srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "req-123")
	resp, body := doRequest(t, req, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.Equal(t, "req-123", resp.Header.Get("X-Request-Id"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestIntegration_PhotoNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	stack := newTestServer(t, &recordingVision{annotations: vision.MockAnnotations()})

	req, err := http.NewRequest(http.MethodGet, stack.srv.URL+"/photos/user-1/missing.jpg", nil)
	require.NoError(t, err)
	resp, _ := doRequest(t, req, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

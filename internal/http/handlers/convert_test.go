package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf2png/internal/convert"
	"pdf2png/internal/domain"
	"pdf2png/internal/infra/pool"
)

type fakeConverter struct {
	res  domain.ConversionResult
	err  error
	seen struct {
		raw   []byte
		pages string
		opts  convert.Options
	}
}

func (f *fakeConverter) ConvertDocument(_ context.Context, raw []byte, pages string, opts convert.Options) (domain.ConversionResult, error) {
	f.seen.raw = raw
	f.seen.pages = pages
	f.seen.opts = opts
	return f.res, f.err
}

func uploadRequest(t *testing.T, path string, file []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if file != nil {
		fw, err := w.CreateFormFile("file", "doc.pdf")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func newTestApp(conv Converter, maxDoc int) *fiber.App {
	h := NewConvertHandler(conv, maxDoc)
	app := fiber.New()
	app.Post("/convert_pdf", h.HandleLegacy)
	app.Post("/v1/convert", h.HandleConvert)
	return app
}

func sampleResult() domain.ConversionResult {
	return domain.ConversionResult{
		Images: map[int]string{2: "aW1nMg==", 4: "aW1nNA=="},
		Failures: map[int]domain.Failure{
			9: {Reason: domain.ReasonOutOfRange, Message: "page out of range: page 9 of 5"},
			7: {Reason: domain.ReasonCorrupt, Message: "corrupt"},
		},
		PageCount: 5,
	}
}

func TestHandleLegacy_FlatMapAndFailedHeader(t *testing.T) {
	conv := &fakeConverter{res: sampleResult()}
	app := newTestApp(conv, 0)

	resp, err := app.Test(uploadRequest(t, "/convert_pdf", []byte("%PDF-1.4"), map[string]string{"pages": "2,4,7,9"}), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, map[string]string{"page_2": "aW1nMg==", "page_4": "aW1nNA=="}, got)
	assert.Equal(t, "7:corrupt,9:out_of_range", resp.Header.Get("X-Failed-Pages"))

	assert.Equal(t, []byte("%PDF-1.4"), conv.seen.raw)
	assert.Equal(t, "2,4,7,9", conv.seen.pages)
}

func TestHandleLegacy_NoFailuresNoHeader(t *testing.T) {
	conv := &fakeConverter{res: domain.ConversionResult{Images: map[int]string{1: "eA=="}, PageCount: 1}}
	app := newTestApp(conv, 0)

	resp, err := app.Test(uploadRequest(t, "/convert_pdf", []byte("%PDF"), map[string]string{"pages": "1"}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("X-Failed-Pages"))
}

func TestHandleConvert_StructuredResponse(t *testing.T) {
	conv := &fakeConverter{res: sampleResult()}
	app := newTestApp(conv, 0)

	req := uploadRequest(t, "/v1/convert", []byte("%PDF-1.4"), map[string]string{
		"pages":       "2,4,7,9",
		"grayscale":   "true",
		"dpi":         "150",
		"max_width":   "800",
		"concurrency": "2",
	})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got ConvertResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 5, got.PageCount)
	assert.Len(t, got.Images, 2)
	assert.Equal(t, "aW1nMg==", got.Images["page_2"])
	assert.Equal(t, domain.ReasonOutOfRange, got.Failures["page_9"].Reason)
	assert.Equal(t, domain.ReasonCorrupt, got.Failures["page_7"].Reason)

	assert.Equal(t, convert.Options{Grayscale: true, DPI: 150, MaxWidth: 800, Concurrency: 2}, conv.seen.opts)
}

func TestHandleConvert_ValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		file   []byte
		fields map[string]string
		status int
	}{
		{"missing file", nil, map[string]string{"pages": "1"}, fiber.StatusBadRequest},
		{"missing pages", []byte("%PDF"), map[string]string{}, fiber.StatusBadRequest},
		{"bad grayscale", []byte("%PDF"), map[string]string{"pages": "1", "grayscale": "maybe"}, fiber.StatusBadRequest},
		{"bad dpi", []byte("%PDF"), map[string]string{"pages": "1", "dpi": "-3"}, fiber.StatusBadRequest},
		{"bad max width", []byte("%PDF"), map[string]string{"pages": "1", "max_width": "wide"}, fiber.StatusBadRequest},
		{"fractional dpi", []byte("%PDF"), map[string]string{"pages": "1", "dpi": "0.5"}, fiber.StatusBadRequest},
		{"bad concurrency", []byte("%PDF"), map[string]string{"pages": "1", "concurrency": "-1"}, fiber.StatusBadRequest},
		{"file too large", bytes.Repeat([]byte("x"), 64), map[string]string{"pages": "1"}, fiber.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conv := &fakeConverter{}
			app := newTestApp(conv, 32)
			resp, err := app.Test(uploadRequest(t, "/v1/convert", tc.file, tc.fields), -1)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Nil(t, conv.seen.raw, "converter must not be called")
		})
	}
}

func TestHandleConvert_BoundaryKindsMapToStatus(t *testing.T) {
	cases := []struct {
		kind   convert.Kind
		status int
	}{
		{convert.KindBadRequest, fiber.StatusBadRequest},
		{convert.KindTooLarge, fiber.StatusRequestEntityTooLarge},
		{convert.KindUnprocessableDocument, fiber.StatusUnprocessableEntity},
		{convert.KindTimeout, fiber.StatusRequestTimeout},
		{convert.KindInternal, fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			conv := &fakeConverter{err: &convert.BoundaryError{Kind: tc.kind, Err: fmt.Errorf("boom")}}
			app := newTestApp(conv, 0)
			resp, err := app.Test(uploadRequest(t, "/convert_pdf", []byte("%PDF"), map[string]string{"pages": "1"}), -1)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

type staticStats pool.Stats

func (s staticStats) Stats() pool.Stats { return pool.Stats(s) }

func TestHandleRenderStats(t *testing.T) {
	app := fiber.New()
	app.Get("/stats", HandleRenderStats(staticStats{Enabled: true, Engine: "fitz", Capacity: 4, Idle: 3, InUse: 1}, 60))
	app.Get("/disabled", HandleRenderStats(nil, 60))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/stats", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, true, got["enabled"])
	assert.Equal(t, "fitz", got["engine"])
	assert.EqualValues(t, 4, got["capacity"])
	assert.EqualValues(t, 3, got["idle"])
	assert.EqualValues(t, 1, got["in_use"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/disabled", nil), -1)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, false, got["enabled"])
}

func TestHandleIndex(t *testing.T) {
	app := fiber.New()
	app.Get("/", HandleIndex)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `name="pages"`)
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	memoryStorage "github.com/gofiber/storage/memory/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf2png/internal/config"
	"pdf2png/internal/convert"
	"pdf2png/internal/domain"
	"pdf2png/internal/infra/pool"
	"pdf2png/internal/tokens"
)

type stubConverter struct{}

func (stubConverter) ConvertDocument(_ context.Context, _ []byte, _ string, _ convert.Options) (domain.ConversionResult, error) {
	return domain.ConversionResult{Images: map[int]string{1: "eA=="}, PageCount: 1}, nil
}

func minimalConfig() config.Config {
	var cfg config.Config
	cfg.Server.BodyLimitMB = 1
	cfg.Limits.MaxDocumentBytes = 1024
	cfg.Render.TimeoutSecs = 1
	cfg.RateLimiter.Interval = time.Minute
	return cfg
}

func convertRequest(t *testing.T, path, apiKey string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", "doc.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, w.WriteField("pages", "1"))
	require.NoError(t, w.Close())

	req, _ := http.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	return req
}

func TestNew_RoutesAndJSON404(t *testing.T) {
	p, err := pool.NewPool(2, "fitz")
	require.NoError(t, err)
	app := New(Deps{Config: minimalConfig(), Converter: stubConverter{}, Stats: p, LimiterStore: memoryStorage.New()})

	for _, path := range []string{"/", "/v1/render/stats", "/ops/health"} {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	for _, path := range []string{"/convert_pdf", "/v1/convert"} {
		resp, err := app.Test(convertRequest(t, path, ""))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	req404, _ := http.NewRequest(http.MethodGet, "/does-not-exist", nil)
	resp404, err := app.Test(req404)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp404.StatusCode)
	assert.Contains(t, resp404.Header.Get("Content-Type"), "application/json")

	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp404.Body).Decode(&body))
	assert.Equal(t, http.StatusNotFound, body.Error.Code)
	assert.Equal(t, "Not Found", body.Error.Message)
}

func TestNew_APIKeyAuth(t *testing.T) {
	cache := tokens.NewCache()
	cache.Replace(map[string]int{"secret": 10})
	app := New(Deps{Config: minimalConfig(), Converter: stubConverter{}, Tokens: cache, LimiterStore: memoryStorage.New()})

	resp, err := app.Test(convertRequest(t, "/v1/convert", "secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(convertRequest(t, "/v1/convert", "wrong"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

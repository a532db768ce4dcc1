package handlers

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"pdf2png/internal/convert"
	"pdf2png/internal/domain"
	"pdf2png/internal/infra/logging"
)

// Converter is the conversion facade the handlers call into.
type Converter interface {
	ConvertDocument(ctx context.Context, raw []byte, rawPageSpec string, opts convert.Options) (domain.ConversionResult, error)
}

// ConvertRequest holds validated input parameters.
type ConvertRequest struct {
	Document []byte
	Filename string
	Pages    string
	Options  convert.Options
}

// ConvertResponse is the body of POST /v1/convert.
type ConvertResponse struct {
	Images    map[string]string         `json:"images"`
	Failures  map[string]domain.Failure `json:"failures"`
	PageCount int                       `json:"page_count"`
}

// ConvertHandler serves the page conversion endpoints.
type ConvertHandler struct {
	svc         Converter
	maxDocBytes int
}

// NewConvertHandler creates the handler. maxDocBytes caps the uploaded file (0 = unlimited).
func NewConvertHandler(svc Converter, maxDocBytes int) *ConvertHandler {
	return &ConvertHandler{svc: svc, maxDocBytes: maxDocBytes}
}

// HandleLegacy answers with a flat {"page_N": base64} map. Failed pages are
// reported in the X-Failed-Pages header as "N:reason" pairs.
func (h *ConvertHandler) HandleLegacy(c *fiber.Ctx) error {
	res, err := h.run(c)
	if err != nil {
		return err
	}
	if header := failedPagesHeader(res.Failures); header != "" {
		c.Set("X-Failed-Pages", header)
	}
	return c.JSON(labelImages(res.Images))
}

// HandleConvert answers with images, failures and the document page count.
func (h *ConvertHandler) HandleConvert(c *fiber.Ctx) error {
	res, err := h.run(c)
	if err != nil {
		return err
	}
	return c.JSON(ConvertResponse{
		Images:    labelImages(res.Images),
		Failures:  labelFailures(res.Failures),
		PageCount: res.PageCount,
	})
}

func (h *ConvertHandler) run(c *fiber.Ctx) (domain.ConversionResult, error) {
	req, err := h.parseRequest(c)
	if err != nil {
		return domain.ConversionResult{}, err
	}

	requestID := c.GetRespHeader(fiber.HeaderXRequestID)
	res, err := h.svc.ConvertDocument(c.UserContext(), req.Document, req.Pages, req.Options)
	if err != nil {
		status := StatusFor(convert.KindOf(err))
		if status >= fiber.StatusInternalServerError {
			logging.Error("Conversion failed", "file", req.Filename, "request_id", requestID, "error", err)
		} else {
			logging.Warn("Conversion rejected", "file", req.Filename, "request_id", requestID, "error", err)
		}
		return domain.ConversionResult{}, fiber.NewError(status, err.Error())
	}

	logging.Info("Pages converted",
		"file", req.Filename,
		"request_id", requestID,
		"page_count", res.PageCount,
		"images", len(res.Images),
		"failures", len(res.Failures),
	)
	return res, nil
}

// parseRequest validates and extracts the multipart form.
func (h *ConvertHandler) parseRequest(c *fiber.Ctx) (*ConvertRequest, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Missing file: a PDF upload in field 'file' is required")
	}
	if h.maxDocBytes > 0 && fh.Size > int64(h.maxDocBytes) {
		return nil, fiber.NewError(fiber.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", h.maxDocBytes))
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Unable to read uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Unable to read uploaded file")
	}

	req := &ConvertRequest{
		Document: data,
		Filename: fh.Filename,
		Pages:    c.FormValue("pages"),
	}
	if strings.TrimSpace(req.Pages) == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Missing pages: expected a comma separated list such as 1,3,5")
	}

	if v := c.FormValue("grayscale"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid grayscale: must be true or false")
		}
		req.Options.Grayscale = b
	}
	if v := c.FormValue("dpi"); v != "" {
		dpi, err := strconv.ParseFloat(v, 64)
		if err != nil || dpi < 1 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid dpi: must be a number of at least 1")
		}
		req.Options.DPI = dpi
	}
	if v := c.FormValue("max_width"); v != "" {
		w, err := strconv.Atoi(v)
		if err != nil || w < 0 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid max_width: must be a non-negative integer")
		}
		req.Options.MaxWidth = w
	}
	if v := c.FormValue("concurrency"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid concurrency: must be a non-negative integer")
		}
		req.Options.Concurrency = n
	}
	return req, nil
}

// StatusFor maps a boundary kind to its HTTP status.
func StatusFor(kind convert.Kind) int {
	switch kind {
	case convert.KindBadRequest:
		return fiber.StatusBadRequest
	case convert.KindTooLarge:
		return fiber.StatusRequestEntityTooLarge
	case convert.KindUnprocessableDocument:
		return fiber.StatusUnprocessableEntity
	case convert.KindTimeout:
		return fiber.StatusRequestTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func failedPagesHeader(failures map[int]domain.Failure) string {
	if len(failures) == 0 {
		return ""
	}
	pages := make([]int, 0, len(failures))
	for p := range failures {
		pages = append(pages, p)
	}
	slices.Sort(pages)

	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, fmt.Sprintf("%d:%s", p, failures[p].Reason))
	}
	return strings.Join(parts, ",")
}

func labelImages(images map[int]string) map[string]string {
	out := make(map[string]string, len(images))
	for p, img := range images {
		out[domain.PageLabel(p)] = img
	}
	return out
}

func labelFailures(failures map[int]domain.Failure) map[string]domain.Failure {
	out := make(map[string]domain.Failure, len(failures))
	for p, f := range failures {
		out[domain.PageLabel(p)] = f
	}
	return out
}

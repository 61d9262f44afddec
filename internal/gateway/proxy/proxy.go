package proxy

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"garment-studio/internal/common/logger"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Proxy Handler
// ============================================================

// заголовки соединения не пересылаются ни в одну сторону
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
	"Content-Length":    true,
}

// Upstream — внутренний сервис за gateway.
type Upstream struct {
	name    string
	baseURL string
	prefix  string
	client  *http.Client
	log     *logger.Logger
}

// NewUpstream: путь запроса без prefix дописывается к baseURL.
func NewUpstream(name, baseURL, prefix string, timeout time.Duration, log *logger.Logger) *Upstream {
	return &Upstream{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		prefix:  prefix,
		client:  &http.Client{Timeout: timeout},
		log:     log.With("upstream", name),
	}
}

func (u *Upstream) Name() string { return u.name }

func (u *Upstream) BaseURL() string { return u.baseURL }

// Handler проксирует запрос с тем же путём и query.
func (u *Upstream) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		return u.forward(c, u.target(c))
	}
}

func (u *Upstream) target(c fiber.Ctx) string {
	target := u.baseURL + strings.TrimPrefix(c.Path(), u.prefix)
	if qs := string(c.Request().URI().QueryString()); qs != "" {
		target += "?" + qs
	}
	return target
}

// forward проксирует любой метод с учетом multipart/raw.
func (u *Upstream) forward(c fiber.Ctx, targetURL string) error {
	u.log.Debug("proxy request",
		"method", c.Method(),
		"path", c.Path(),
		"content_type", c.Get("Content-Type"),
		"bytes", len(c.Body()),
		"target", targetURL)

	contentType := c.Get("Content-Type")
	var (
		req *http.Request
		err error
	)
	if strings.HasPrefix(contentType, "multipart/form-data") {
		req, err = u.multipartRequest(c, targetURL)
	} else {
		req, err = http.NewRequestWithContext(c.Context(), c.Method(), targetURL, bytes.NewReader(c.Body()))
		if err == nil && contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
	}
	if err != nil {
		return err
	}
	if auth := c.Get("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		u.log.Warn("upstream unreachable", "target", targetURL, "error", err)
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "failed to reach upstream service"})
	}
	defer resp.Body.Close()

	return u.copyResponse(c, resp)
}

func (u *Upstream) multipartRequest(c fiber.Ctx, targetURL string) (*http.Request, error) {
	form, err := c.MultipartForm()
	if err != nil {
		u.log.Warn("invalid multipart", "error", err)
		return nil, fiber.NewError(http.StatusBadRequest, "invalid multipart data")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, files := range form.File {
		for _, fileHeader := range files {
			if err := copyPart(writer, key, fileHeader); err != nil {
				u.log.Warn("multipart part skipped", "field", key, "error", err)
			}
		}
	}
	for key, values := range form.Value {
		for _, value := range values {
			if err := writer.WriteField(key, value); err != nil {
				return nil, err
			}
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(c.Context(), c.Method(), targetURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

func copyPart(w *multipart.Writer, field string, fileHeader *multipart.FileHeader) error {
	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, fileHeader.Filename))
	if contentType := fileHeader.Header.Get("Content-Type"); contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

func (u *Upstream) copyResponse(c fiber.Ctx, resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		u.log.Warn("read upstream response", "error", err)
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "invalid upstream response"})
	}

	for key, values := range resp.Header {
		if len(values) > 0 && !hopHeaders[key] {
			c.Set(key, values[0])
		}
	}

	c.Status(resp.StatusCode)
	return c.Send(data)
}

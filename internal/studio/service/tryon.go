package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ============================================================
// Try-On Client
// ============================================================

const maxTryOnResponse = 20 << 20

// TryOnResult — либо картинка, либо текстовый ответ модели (например,
// «на фото не найден человек»). Текстовый ответ не считается сбоем.
type TryOnResult struct {
	Image       []byte `json:"-"`
	ContentType string `json:"content_type,omitempty"`
	TextError   string `json:"text_error,omitempty"`
}

func (r TryOnResult) HasImage() bool {
	return len(r.Image) > 0
}

// TryOnGenerator — внешний сервис примерки.
type TryOnGenerator interface {
	Generate(ctx context.Context, photo, garment []byte, pose string) (TryOnResult, error)
}

type TryOnClient struct {
	baseURL string
	client  *http.Client
}

func NewTryOnClient(baseURL string, timeout time.Duration) *TryOnClient {
	return &TryOnClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Generate отправляет фото пользователя и рендер изделия multipart-формой
// на <baseURL>/generate.
func (c *TryOnClient) Generate(ctx context.Context, photo, garment []byte, pose string) (TryOnResult, error) {
	if c.baseURL == "" {
		return TryOnResult{}, transient("try-on", fmt.Errorf("try-on url is empty"))
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writeFormFile(writer, "photo", "photo", photo); err != nil {
		return TryOnResult{}, err
	}
	if err := writeFormFile(writer, "garment", "garment.png", garment); err != nil {
		return TryOnResult{}, err
	}
	if err := writer.WriteField("pose", pose); err != nil {
		return TryOnResult{}, err
	}
	if err := writer.Close(); err != nil {
		return TryOnResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", body)
	if err != nil {
		return TryOnResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return TryOnResult{}, transient("try-on", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTryOnResponse))
	if err != nil {
		return TryOnResult{}, transient("try-on", err)
	}
	if resp.StatusCode >= 300 {
		return TryOnResult{}, transient("try-on", fmt.Errorf("try-on status %d", resp.StatusCode))
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		if len(data) == 0 {
			return TryOnResult{}, transient("try-on", fmt.Errorf("empty image"))
		}
		return TryOnResult{Image: data, ContentType: mediaType}, nil
	case mediaType == "application/json":
		var payload struct {
			Text  string `json:"text"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return TryOnResult{}, transient("try-on", fmt.Errorf("decode response: %w", err))
		}
		msg := payload.Text
		if msg == "" {
			msg = payload.Error
		}
		return TryOnResult{TextError: strings.TrimSpace(msg)}, nil
	default:
		return TryOnResult{TextError: strings.TrimSpace(string(data))}, nil
	}
}

func writeFormFile(w *multipart.Writer, field, name string, data []byte) error {
	part, err := w.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

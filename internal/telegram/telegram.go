// Package telegram publishes enriched records to a Telegram channel via
// the Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deusflow/chnews/internal/pipeline"
	"github.com/deusflow/chnews/internal/textutil"
)

// Telegram hard-caps messages around 4096 characters; captions at 1024.
const (
	messageMaxRunes = 4000
	captionMaxRunes = 1000
)

// Sink posts records to one chat or channel.
type Sink struct {
	token      string
	chatID     string
	httpClient *http.Client
	log        *slog.Logger
}

func NewSink(token, chatID string) *Sink {
	return &Sink{
		token:      token,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        slog.With("component", "telegram"),
	}
}

// Publish sends one record. A record with an image path becomes a photo
// post with the formatted text as caption; otherwise a plain message.
// One attempt only; retries are the caller's policy.
func (s *Sink) Publish(ctx context.Context, rec pipeline.EnrichedRecord) error {
	if rec.ImagePath != "" {
		if err := s.sendPhoto(ctx, rec.ImagePath, FormatPost(rec, captionMaxRunes)); err == nil {
			return nil
		} else {
			s.log.Warn("photo post failed, falling back to text", "title", rec.Title, "error", err)
		}
	}
	return s.sendMessage(ctx, FormatPost(rec, messageMaxRunes))
}

// FormatPost renders a record as a MarkdownV2 post: title, synopsis, a
// capped body and the source link.
func FormatPost(rec pipeline.EnrichedRecord, maxRunes int) string {
	var b strings.Builder

	b.WriteString("📢 *" + EscapeMarkdownV2(rec.Title) + "*\n\n")

	if rec.Summary != "" && rec.Summary != rec.Body {
		b.WriteString(EscapeMarkdownV2(rec.Summary) + "\n\n")
	}

	if rec.Body != "" && len(rec.Body) > len(rec.Summary) {
		b.WriteString("\\-\\-\\-\n*Повний текст:*\n")
		b.WriteString(EscapeMarkdownV2(textutil.Truncate(rec.Body, captionMaxRunes)) + "\n\n")
	}

	b.WriteString(fmt.Sprintf("[Читати оригінал](%s)\n\n", escapeLinkURL(rec.SourceURL)))
	b.WriteString("Джерело: " + EscapeMarkdownV2(rec.SourceName))

	return textutil.Truncate(b.String(), maxRunes)
}

// escapeLinkURL escapes the characters MarkdownV2 treats specially inside
// an inline-link URL. Only backslash and closing parenthesis need it there.
func escapeLinkURL(u string) string {
	u = strings.ReplaceAll(u, `\`, `\\`)
	return strings.ReplaceAll(u, `)`, `\)`)
}

// EscapeMarkdownV2 escapes every character the Bot API treats as markup.
func EscapeMarkdownV2(text string) string {
	if text == "" {
		return ""
	}
	escapeChars := `_*[]()~` + "`" + `>#+-=|{}.!`
	var b strings.Builder
	for _, r := range text {
		if strings.ContainsRune(escapeChars, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Sink) sendMessage(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.token)

	payload := map[string]interface{}{
		"chat_id":                  s.chatID,
		"text":                     text,
		"parse_mode":               "MarkdownV2",
		"disable_web_page_preview": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return s.do(req)
}

func (s *Sink) sendPhoto(ctx context.Context, imagePath, caption string) error {
	file, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("chat_id", s.chatID)
	_ = w.WriteField("caption", caption)
	_ = w.WriteField("parse_mode", "MarkdownV2")

	part, err := w.CreateFormFile("photo", filepath.Base(imagePath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy image: %w", err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendPhoto", s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return s.do(req)
}

func (s *Sink) do(req *http.Request) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return fmt.Errorf("decode telegram response (status %d): %w", resp.StatusCode, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, apiResp.Description)
	}
	return nil
}

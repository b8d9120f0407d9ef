// Package translate is the layered fallback translator used when Gemini is
// not configured: the free Google endpoint first, then OpenAI. Results are
// cached per content hash so a retried article never pays twice.
package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Layered translates into Ukrainian. openAIKey may be empty, which removes
// the second layer.
type Layered struct {
	httpClient *http.Client
	openAIKey  string
	log        *slog.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	text      string
	expiresAt time.Time
}

func NewLayered(openAIKey string) *Layered {
	return &Layered{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		openAIKey:  openAIKey,
		log:        slog.With("component", "translate"),
		cache:      make(map[string]cacheEntry),
		ttl:        12 * time.Hour,
	}
}

// Translate implements the pipeline Translator contract for target
// language Ukrainian.
func (l *Layered) Translate(ctx context.Context, text, sourceLang string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	key := cacheKey(text, sourceLang)
	if cached, ok := l.cached(key); ok {
		return cached, nil
	}

	// The free endpoint rejects very long payloads.
	input := text
	if len(input) > 4000 {
		input = input[:4000]
	}

	result, err := l.googleTranslate(ctx, input, sourceLang)
	if err == nil && result != "" && result != input {
		l.store(key, result)
		return result, nil
	}
	l.log.Debug("google translate unavailable", "source_lang", sourceLang, "error", err)

	if l.openAIKey != "" {
		result, err = l.openAITranslate(ctx, input, sourceLang)
		if err == nil && result != "" {
			l.store(key, result)
			return result, nil
		}
		l.log.Debug("openai translate unavailable", "source_lang", sourceLang, "error", err)
	}

	return "", fmt.Errorf("no translation service produced output for %s text", sourceLang)
}

func (l *Layered) googleTranslate(ctx context.Context, text, from string) (string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", from)
	params.Set("tl", "uk")
	params.Set("dt", "t")
	params.Set("q", text)

	endpoint := "https://translate.googleapis.com/translate_a/single?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read translate response: %w", err)
	}
	return parseGoogleResponse(body)
}

// parseGoogleResponse walks the nested-array payload of the free endpoint
// and joins the translated segments.
func parseGoogleResponse(body []byte) (string, error) {
	var response []interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}
	if len(response) == 0 {
		return "", errors.New("empty translate response")
	}

	segments, ok := response[0].([]interface{})
	if !ok {
		return "", errors.New("unexpected translate response format")
	}

	var result strings.Builder
	for _, segment := range segments {
		if parts, ok := segment.([]interface{}); ok && len(parts) > 0 {
			if translated, ok := parts[0].(string); ok {
				result.WriteString(translated)
			}
		}
	}
	return result.String(), nil
}

func (l *Layered) openAITranslate(ctx context.Context, text, from string) (string, error) {
	client := openai.NewClient(l.openAIKey)

	prompt := fmt.Sprintf(`Translate the following %s news text to Ukrainian.
Keep the meaning, tone and journalistic style of the original.
Translate only the text itself, without additional comments.
Use modern Ukrainian vocabulary.

Text to translate:
%s`, sourceLanguageName(from), text)

	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxCompletionTokens: 2000,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from openai")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func sourceLanguageName(code string) string {
	switch code {
	case "de":
		return "German"
	case "fr":
		return "French"
	case "it":
		return "Italian"
	case "en":
		return "English"
	default:
		return "foreign-language"
	}
}

func cacheKey(text, sourceLang string) string {
	h := sha256.New()
	h.Write([]byte(sourceLang + "|" + text))
	return hex.EncodeToString(h.Sum(nil))
}

func (l *Layered) cached(key string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.text, true
}

func (l *Layered) store(key, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache[key] = cacheEntry{text: text, expiresAt: time.Now().Add(l.ttl)}
}

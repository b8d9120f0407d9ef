// Package gemini backs the pipeline's classify, translate and summarize
// stages with the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/deusflow/chnews/internal/relevance"
)

const defaultModel = "gemini-1.5-flash"

// Prompt input cap, in runes. Longer bodies are cut at a sentence end.
const maxPromptRunes = 6000

type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{client: client, model: defaultModel}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Classify returns whether the news text concerns Ukraine or Ukrainians.
// Any answer other than an explicit positive counts as not relevant.
func (c *Client) Classify(ctx context.Context, text string) (relevance.Verdict, error) {
	prompt := fmt.Sprintf(`Проаналізуй наступний текст новини та визнач, чи стосується він України або українців.
Відповідь має бути лише "Ukraine-related" або "Not related".

Текст новини:
---
%s
---

Відповідь:`, sanitize(text))

	resp, err := c.generate(ctx, prompt)
	if err != nil {
		return relevance.NotRelevant, err
	}
	if strings.Contains(resp, "Ukraine-related") {
		return relevance.Relevant, nil
	}
	return relevance.NotRelevant, nil
}

// Translate renders text in Ukrainian, keeping the journalistic register.
func (c *Client) Translate(ctx context.Context, text, sourceLang string) (string, error) {
	prompt := fmt.Sprintf(`Переклади наступний текст (мова оригіналу: %s) українською мовою, зберігаючи офіційний новинний стиль.
Уникай художнього переосмислення, дотримуйся нейтрального тону.
Не перекладай назви брендів та організацій. Відповідь — лише переклад, без коментарів.

Текст:
---
%s
---

Переклад:`, languageName(sourceLang), sanitize(text))

	out, err := c.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Summarize produces a 3-5 sentence Ukrainian synopsis.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(`Сформулюй короткий синопсис цієї новини українською мовою, 3–5 речень.
Включи: хто, що, де/коли, чому важливо. Уникай вводних слів типу «Новина про те, що…».

Текст:
---
%s
---

Синопсис:`, sanitize(text))

	out, err := c.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}
	return fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]), nil
}

// sanitize collapses whitespace and caps the prompt payload, cutting on a
// sentence boundary when one is close enough.
func sanitize(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) <= maxPromptRunes {
		return text
	}
	runes := []rune(text)
	trimmed := string(runes[:maxPromptRunes])
	if idx := strings.LastIndex(trimmed, ". "); idx > 1200 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed
}

func languageName(code string) string {
	switch code {
	case "de":
		return "німецька"
	case "fr":
		return "французька"
	case "it":
		return "італійська"
	case "en":
		return "англійська"
	default:
		return "невідома"
	}
}

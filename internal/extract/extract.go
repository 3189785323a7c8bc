// Package extract is the client for the receipt extraction service: a
// vision model that turns a receipt photo into a loosely-structured
// JSON document. The document is untrusted input; the normalize
// package turns it into a valid Purchase.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the default Gemini model used for extraction.
const DefaultModelName = "gemini-2.5-flash"

// Extractor produces a raw receipt document from image bytes. The
// concrete implementation calls Gemini; tests substitute a mock.
type Extractor interface {
	ExtractReceipt(ctx context.Context, imageBytes []byte, mimeType string) (map[string]any, error)
}

// GeminiExtractor extracts receipt data using the Gemini vision API.
type GeminiExtractor struct {
	model string
}

// NewGeminiExtractor creates an extractor using the given model, or
// DefaultModelName when empty. Credentials come from the environment
// (GEMINI_API_KEY or application default credentials).
func NewGeminiExtractor(model string) *GeminiExtractor {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiExtractor{model: model}
}

// ExtractReceipt sends the receipt image inline to the model and
// returns the parsed JSON document as a generic map.
func (e *GeminiExtractor) ExtractReceipt(ctx context.Context, imageBytes []byte, mimeType string) (map[string]any, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("ExtractReceipt: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: receiptPrompt()},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     imageBytes,
					},
				},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("ExtractReceipt: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("ExtractReceipt: empty response from model")
	}

	clean := cleanModelJSON(rawText)

	var doc map[string]any
	if err := json.Unmarshal([]byte(clean), &doc); err != nil {
		return nil, fmt.Errorf("ExtractReceipt: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}
	return doc, nil
}

// cleanModelJSON strips Markdown fences and surrounding junk when the
// model ignores the strict-JSON instructions. The payload is a single
// object, so everything outside the outermost braces is dropped.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

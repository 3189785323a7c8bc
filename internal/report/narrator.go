package report

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the default Gemini model used for narration.
const DefaultModelName = "gemini-2.5-flash"

// Narrator turns an aggregated data summary into a prose report.
type Narrator interface {
	Narrate(ctx context.Context, dataSummary string) (string, error)
}

// GeminiNarrator writes the report with the Gemini API.
type GeminiNarrator struct {
	model string
}

// NewGeminiNarrator creates a narrator using the given model, or
// DefaultModelName when empty. Credentials come from the environment
// (GEMINI_API_KEY or application default credentials).
func NewGeminiNarrator(model string) *GeminiNarrator {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiNarrator{model: model}
}

// Narrate asks the model for a short advisor-style write-up of the
// aggregated numbers.
func (n *GeminiNarrator) Narrate(ctx context.Context, dataSummary string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("Narrate: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: narrativePrompt(dataSummary)}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, n.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Narrate: generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("Narrate: empty response from model")
	}
	return text, nil
}

func narrativePrompt(dataSummary string) string {
	var b strings.Builder
	b.WriteString("You are a financial analyst assistant.\n\n")
	b.WriteString("Here is a concise data summary of the user's spending for the month:\n\n")
	b.WriteString(dataSummary)
	b.WriteString("\n\nAs a friendly financial advisor, write a clear, well-structured report ")
	b.WriteString("in 3-4 paragraphs based on that data. Start with an overview of the total spend, ")
	b.WriteString("then discuss any notable high-spend days, mention which merchants took the ")
	b.WriteString("biggest share of the budget, briefly describe the types of items purchased, ")
	b.WriteString("and finish with one or two actionable insights for next month.")
	return b.String()
}

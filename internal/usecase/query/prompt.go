package query

import (
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/kailas-cloud/ragstream/internal/domain"
)

const contextTemplateText = `Context information is below.
---------------------
{{range .Context}}{{.Text}}
{{end}}---------------------
Given the context information and not prior knowledge, answer the question: {{.Question}}`

var contextTemplate = template.Must(template.New("context").Parse(contextTemplateText))

type promptData struct {
	Context  []domain.RetrievedContext
	Question string
}

// EstimateTokens approximates the token count of s as one token per four runes, rounded up.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

// PlainPrompt returns the question itself when it fits into budget tokens.
func PlainPrompt(question string, budget int) (string, error) {
	if EstimateTokens(question) > budget {
		return "", fmt.Errorf("%d estimated tokens, budget %d: %w",
			EstimateTokens(question), budget, domain.ErrPromptTooLarge)
	}
	return question, nil
}

// ContextPrompt renders the context template with as many items as fit into budget.
// Items are taken in rank order; the first one that overflows is dropped together with
// every lower-ranked item. It returns the prompt and the items it contains.
func ContextPrompt(
	question string, items []domain.RetrievedContext, budget int,
) (string, []domain.RetrievedContext, error) {
	prompt, err := render(question, nil)
	if err != nil {
		return "", nil, err
	}
	if n := EstimateTokens(prompt); n > budget {
		return "", nil, fmt.Errorf("%d estimated tokens, budget %d: %w", n, budget, domain.ErrPromptTooLarge)
	}

	used := 0
	for used < len(items) {
		next, err := render(question, items[:used+1])
		if err != nil {
			return "", nil, err
		}
		if EstimateTokens(next) > budget {
			break
		}
		prompt = next
		used++
	}
	return prompt, items[:used], nil
}

func render(question string, items []domain.RetrievedContext) (string, error) {
	var b strings.Builder
	if err := contextTemplate.Execute(&b, promptData{Context: items, Question: question}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}

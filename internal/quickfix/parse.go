package quickfix

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/termfix/termfix/internal/domain"
)

// ErrMalformedResponse means the backend's output could not be parsed as
// the expected suggestion array.
var ErrMalformedResponse = errors.New("malformed suggestion response")

type suggestionPayload struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	Relevance   string `json:"relevance"`
}

// ParseSuggestions extracts the suggestion array from a backend response.
// Responses wrapped in a fenced code block are unwrapped first. Unknown
// relevance tokens default to low; entries without a command are dropped.
func ParseSuggestions(raw string) ([]domain.CommandSuggestion, error) {
	jsonStr, err := extractJSONArray(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var payloads []suggestionPayload
	if err := json.Unmarshal([]byte(jsonStr), &payloads); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	suggestions := make([]domain.CommandSuggestion, 0, len(payloads))
	for _, p := range payloads {
		if strings.TrimSpace(p.Command) == "" {
			continue
		}
		suggestions = append(suggestions, domain.CommandSuggestion{
			Command:     strings.TrimSpace(p.Command),
			Description: strings.TrimSpace(p.Description),
			Relevance:   domain.ParseRelevance(p.Relevance),
		})
	}
	return suggestions, nil
}

// extractJSONArray handles the common backend habit of wrapping JSON in
// markdown. The first fenced code block wins; otherwise the outermost
// bracket pair is taken.
func extractJSONArray(response string) (string, error) {
	if block, ok := extractFencedBlock(response); ok {
		return block, nil
	}

	response = strings.TrimSpace(response)
	start := strings.Index(response, "[")
	if start < 0 {
		return "", errors.New("no JSON array found")
	}
	end := strings.LastIndex(response, "]")
	if end <= start {
		return "", errors.New("no matching closing bracket found")
	}
	jsonStr := strings.TrimSpace(response[start : end+1])
	if jsonStr == "" {
		return "", errors.New("extracted JSON is empty")
	}
	return jsonStr, nil
}

func extractFencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]
	// The remainder of the fence line is a language tag; drop it.
	nl := strings.Index(rest, "\n")
	if nl < 0 {
		return "", false
	}
	body := rest[nl+1:]
	end := strings.Index(body, "```")
	if end < 0 {
		return "", false
	}
	block := strings.TrimSpace(body[:end])
	if block == "" {
		return "", false
	}
	return block, true
}

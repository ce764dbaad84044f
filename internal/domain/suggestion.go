package domain

import "strings"

// Relevance grades how likely a suggestion is to fix the failed command.
type Relevance int

const (
	RelevanceLow Relevance = iota
	RelevanceMedium
	RelevanceHigh
)

func (r Relevance) String() string {
	switch r {
	case RelevanceHigh:
		return "high"
	case RelevanceMedium:
		return "medium"
	default:
		return "low"
	}
}

// ParseRelevance maps a backend-provided token to a Relevance.
// Unknown tokens default to low rather than failing the whole response.
func ParseRelevance(s string) Relevance {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return RelevanceHigh
	case "medium":
		return RelevanceMedium
	default:
		return RelevanceLow
	}
}

// CommandSuggestion is one candidate fix produced for a failed command.
// Suggestions are transient: they live for one fix request and are never
// persisted as-is (applied fixes are recorded separately).
type CommandSuggestion struct {
	Command     string
	Description string
	Relevance   Relevance
}

package models

// Result is one raw web search hit. Score is provider-supplied when
// available (Tavily); zero otherwise.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"`
}

package llm

import "canvasflow/internal/router"

// DefaultCandidates is the model fallback chain, tried in priority order.
func DefaultCandidates() []router.Candidate {
	return []router.Candidate{
		{ID: "openai/gpt-4o", Name: "GPT-4o", Priority: 1},
		{ID: "meta/llama-3.3-70b-instruct", Name: "Llama 3.3 70B", Priority: 2},
		{ID: "mistral-ai/mistral-large-2407", Name: "Mistral Large", Priority: 3},
		{ID: "openai/gpt-4o-mini", Name: "GPT-4o Mini", Priority: 10},
	}
}

package factory

import (
	"fmt"

	"ai-notebook-be/pkg/llm"
	"ai-notebook-be/pkg/llm/huggingface"
	"ai-notebook-be/pkg/llm/ollama"
)

// NewLLMProvider builds the configured backend. baseURL defaults per
// provider when empty.
func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "huggingface":
		return huggingface.NewHuggingFaceProvider(apiKey, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}

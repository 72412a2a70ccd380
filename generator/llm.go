package generator

import "context"

// LLMClient abstracts the text model so it can be swapped or mocked.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// ImageGenerator abstracts the image model. Generate returns the URL of one image.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMSettings is the provider configuration handed to concrete clients.
type LLMSettings struct {
	Provider   string
	Model      string
	ImageModel string
	APIKey     string
	BaseURL    string
}

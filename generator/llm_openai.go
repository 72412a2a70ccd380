package generator

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAILLM implements LLMClient using the official openai-go SDK (chat completions).
type OpenAILLM struct {
	Model string
	Opts  []option.RequestOption
}

func NewOpenAILLMFromConfig(cfg *LLMSettings) (*OpenAILLM, error) {
	opts, err := requestOptions(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	return &OpenAILLM{Model: cfg.Model, Opts: opts}, nil
}

// requestOptions builds the shared client options. Retries are off: every external
// failure is reported once to the operator instead.
func requestOptions(cfg *LLMSettings) ([]option.RequestOption, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return opts, nil
}

func (o *OpenAILLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	client := openai.NewClient(o.Opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// OpenAIImages implements ImageGenerator with the images endpoint: one square image at
// standard quality, returned as a URL.
type OpenAIImages struct {
	Model string
	Opts  []option.RequestOption
}

func NewOpenAIImagesFromConfig(cfg *LLMSettings) (*OpenAIImages, error) {
	opts, err := requestOptions(cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.ImageModel
	if model == "" {
		model = string(openai.ImageModelDallE3)
	}
	return &OpenAIImages{Model: model, Opts: opts}, nil
}

func (o *OpenAIImages) Generate(ctx context.Context, prompt string) (string, error) {
	client := openai.NewClient(o.Opts...)

	resp, err := client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(o.Model),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		Quality:        openai.ImageGenerateParamsQualityStandard,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
		N:              openai.Int(1),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("openai: image response has no url")
	}
	return resp.Data[0].URL, nil
}

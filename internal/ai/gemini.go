package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	// DefaultGeminiModel is used when no model name is configured.
	DefaultGeminiModel = "gemini-2.0-flash"
	// DefaultCallTimeout bounds a single provider call.
	DefaultCallTimeout = 30 * time.Second
)

// GeminiProvider implements Provider using Google's Gemini models.
// Gemini receives a flat prompt built from the last user turn; system turns
// become the model's system instruction.
type GeminiProvider struct {
	client    *genai.Client
	modelName string
	timeout   time.Duration
}

// NewGeminiProvider initializes a Gemini client. The client is created once and
// shared across calls.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingCredentials)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &GeminiProvider{client: client, modelName: modelName, timeout: timeout}, nil
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Submit sends the flattened conversation to Gemini.
func (p *GeminiProvider) Submit(ctx context.Context, conversation []Turn) (*Envelope, error) {
	prompt := lastUserTurn(conversation)
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("gemini: conversation has no user turn")
	}

	// GenerativeModel carries per-request settings, so build one per call.
	model := p.client.GenerativeModel(p.modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.4)
	if sys := systemText(conversation); sys != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(sys)}}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := model.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	return geminiEnvelope(resp), nil
}

// geminiEnvelope decodes a Gemini response into the uniform envelope. A reply
// without text yields an envelope with empty content.
func geminiEnvelope(resp *genai.GenerateContentResponse) *Envelope {
	env := &Envelope{}
	if resp == nil {
		return env
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var text strings.Builder
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				text.WriteString(string(txt))
			}
		}
		env.Choices = append(env.Choices, Choice{Message: Message{Role: RoleAssistant, Content: text.String()}})
	}
	return env
}

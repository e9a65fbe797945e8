package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultOpenAIModel is used when no model name is configured.
	DefaultOpenAIModel = "gpt-4o-mini"

	defaultSystemTurn = "You are a helpful travel planning assistant. Answer with JSON only."
	maxReplyBytes     = 4 << 20
)

// ChatGPTProvider implements Provider against an OpenAI-compatible
// chat-completions endpoint. It always sends the full message array, with a
// system turn first.
type ChatGPTProvider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewChatGPTProvider builds the adapter. baseURL may be empty for api.openai.com.
// The http client's timeout guards against stalled connections while context
// cancellation is still honoured via NewRequestWithContext.
func NewChatGPTProvider(apiKey, model, baseURL string, timeout time.Duration) (*ChatGPTProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("chatgpt: %w", ErrMissingCredentials)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	endpoint := strings.TrimSuffix(baseURL, "/")
	if !strings.HasSuffix(endpoint, "/chat/completions") {
		endpoint += "/chat/completions"
	}
	return &ChatGPTProvider{
		apiKey:     apiKey,
		model:      model,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (p *ChatGPTProvider) Name() string {
	return "openai"
}

// Submit sends the conversation to the chat completions endpoint.
func (p *ChatGPTProvider) Submit(ctx context.Context, conversation []Turn) (*Envelope, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model:          p.model,
		Messages:       toChatMessages(conversation),
		Temperature:    0.4,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("chatgpt: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("chatgpt: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chatgpt: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("chatgpt: read response: %w", err)
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("chatgpt: api status %d: %s", resp.StatusCode, Truncate(string(body), 200))
		}
		return nil, fmt.Errorf("chatgpt: unmarshal response: %w", err)
	}
	if cr.Error != nil {
		return nil, fmt.Errorf("chatgpt: api error (status %d): %s", resp.StatusCode, cr.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chatgpt: api status %d", resp.StatusCode)
	}

	env := &Envelope{}
	for _, c := range cr.Choices {
		env.Choices = append(env.Choices, Choice{Message: Message{Role: RoleAssistant, Content: c.Message.Content}})
	}
	return env, nil
}

func toChatMessages(conversation []Turn) []chatMessage {
	msgs := make([]chatMessage, 0, len(conversation)+1)
	hasSystem := false
	for _, t := range conversation {
		if t.Role == RoleSystem {
			hasSystem = true
			break
		}
	}
	if !hasSystem {
		msgs = append(msgs, chatMessage{Role: string(RoleSystem), Content: defaultSystemTurn})
	}
	for _, t := range conversation {
		msgs = append(msgs, chatMessage{Role: string(t.Role), Content: t.Content})
	}
	return msgs
}

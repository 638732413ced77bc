// Package gemini implements the Game Master agent on the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"gamemaster-agent/internal/domain"
)

const (
	defaultModel       = "gemini-2.5-flash"
	defaultTemperature = float32(0.7)
)

// Client generates narrative turns using Google's Gemini API.
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewClient creates a Gemini client. An empty model selects the default.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{client: client, model: model, temperature: defaultTemperature}, nil
}

// Generate produces the next Game Master utterance for the transcript.
func (c *Client) Generate(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	contents, config, err := buildPrompt(messages, c.temperature)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

// buildPrompt converts the transcript into Gemini request shape. System
// messages are folded into the system instruction; assistant turns map to
// Gemini's "model" role.
func buildPrompt(messages []domain.ChatMessage, temperature float32) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case string(domain.RoleSystem):
			system = append(system, m.Content)
		case string(domain.RoleAssistant):
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return nil, nil, errors.New("gemini: transcript has no conversational turns")
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return contents, config, nil
}

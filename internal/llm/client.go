// Package llm wraps the external completion and synthesis services.
// Failures here are always recoverable from the orchestrator's point of
// view: they surface as a short message, never as a stuck state.
package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"shimi/internal/config"
	"shimi/internal/history"
)

type Client struct {
	api     openai.Client
	persona string

	chatModel      string
	temperature    float64
	maxReplyTokens int64

	ttsModel string
	ttsVoice string
	ttsSpeed float64
}

// New builds a client from config. Extra request options (API key, HTTP
// client, base URL) are passed through to the underlying SDK client.
func New(cfg *config.Config, opts ...option.RequestOption) *Client {
	return &Client{
		api:            openai.NewClient(opts...),
		persona:        DefaultPersona,
		chatModel:      cfg.ChatModel,
		temperature:    cfg.Temperature,
		maxReplyTokens: int64(cfg.MaxReplyTokens),
		ttsModel:       cfg.TTSModel,
		ttsVoice:       cfg.TTSVoice,
		ttsSpeed:       cfg.TTSSpeed,
	}
}

// Complete sends the user message preceded by the prior context window and
// returns the reply text. The persona system prompt is prepended here.
func (c *Client) Complete(ctx context.Context, message string, prior []history.Turn) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(prior)+2)
	msgs = append(msgs, openai.SystemMessage(c.persona))
	for _, t := range prior {
		switch t.Role {
		case history.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Text))
		default:
			msgs = append(msgs, openai.UserMessage(t.Text))
		}
	}
	msgs = append(msgs, openai.UserMessage(message))

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    msgs,
		Model:       openai.ChatModel(c.chatModel),
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxReplyTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Synthesize turns reply text into encoded audio bytes (MP3).
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := c.api.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(c.ttsModel),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(c.ttsVoice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
		Speed:          openai.Float(c.ttsSpeed),
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech synthesis: unexpected status %s", resp.Status)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesis body: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty synthesis response")
	}
	return audio, nil
}

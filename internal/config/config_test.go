package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "gpt-4o", cfg.ChatModel)
	assert.InDelta(t, 0.8, cfg.Temperature, 1e-9)
	assert.Equal(t, 500, cfg.MaxReplyTokens)
	assert.Equal(t, 30*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, "tts-1", cfg.TTSModel)
	assert.Equal(t, "onyx", cfg.TTSVoice)
	assert.InDelta(t, 1.1, cfg.TTSSpeed, 1e-9)
	assert.Equal(t, "ash", cfg.RealtimeVoice)
	assert.Equal(t, 200, cfg.HistoryLimit)
	assert.Equal(t, 40, cfg.ContextWindow)
	assert.Equal(t, 16000, cfg.SampleRate)
	assert.Equal(t, 600*time.Millisecond, cfg.SilenceAfter)
	assert.NotEmpty(t, cfg.HistoryPath)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SHIMI_CHAT_MODEL", "gpt-4o-mini")
	t.Setenv("SHIMI_TEMPERATURE", "0.3")
	t.Setenv("SHIMI_HISTORY_LIMIT", "50")
	t.Setenv("SHIMI_COMPLETION_TIMEOUT", "5s")
	t.Setenv("SHIMI_SOCKET", "/run/shimi.sock")

	cfg := Load()
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.InDelta(t, 0.3, cfg.Temperature, 1e-9)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, 5*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, "/run/shimi.sock", cfg.SocketPath)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SHIMI_HISTORY_LIMIT", "lots")
	t.Setenv("SHIMI_TEMPERATURE", "warm")
	t.Setenv("SHIMI_SILENCE_AFTER", "soon")

	cfg := Load()
	assert.Equal(t, 200, cfg.HistoryLimit)
	assert.InDelta(t, 0.8, cfg.Temperature, 1e-9)
	assert.Equal(t, 600*time.Millisecond, cfg.SilenceAfter)
}

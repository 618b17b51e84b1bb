// Package config holds daemon configuration loaded from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Completion service
	ChatModel         string
	Temperature       float64
	MaxReplyTokens    int
	CompletionTimeout time.Duration

	// Synthesis service
	TTSModel         string
	TTSVoice         string
	TTSSpeed         float64
	SynthesisTimeout time.Duration

	// Realtime service
	RealtimeModel string
	RealtimeVoice string

	// History
	HistoryPath   string
	HistoryLimit  int
	ContextWindow int

	// Capture
	WhisperModelPath string
	Language         string
	SampleRate       int
	SilenceAfter     time.Duration
	MaxUtterance     time.Duration

	// Control socket
	SocketPath string
}

func Load() *Config {
	return &Config{
		ChatModel:         getEnv("SHIMI_CHAT_MODEL", "gpt-4o"),
		Temperature:       getEnvFloat("SHIMI_TEMPERATURE", 0.8),
		MaxReplyTokens:    getEnvInt("SHIMI_MAX_REPLY_TOKENS", 500),
		CompletionTimeout: getEnvDuration("SHIMI_COMPLETION_TIMEOUT", 30*time.Second),
		TTSModel:          getEnv("SHIMI_TTS_MODEL", "tts-1"),
		TTSVoice:          getEnv("SHIMI_TTS_VOICE", "onyx"),
		TTSSpeed:          getEnvFloat("SHIMI_TTS_SPEED", 1.1),
		SynthesisTimeout:  getEnvDuration("SHIMI_SYNTHESIS_TIMEOUT", 30*time.Second),
		RealtimeModel:     getEnv("SHIMI_REALTIME_MODEL", "gpt-4o-realtime-preview-2025-06-03"),
		RealtimeVoice:     getEnv("SHIMI_REALTIME_VOICE", "ash"),
		HistoryPath:       getEnv("SHIMI_HISTORY_PATH", defaultHistoryPath()),
		HistoryLimit:      getEnvInt("SHIMI_HISTORY_LIMIT", 200),
		ContextWindow:     getEnvInt("SHIMI_CONTEXT_WINDOW", 40),
		WhisperModelPath:  getEnv("SHIMI_WHISPER_MODEL", "third_party/whisper.cpp/models/ggml-medium.bin"),
		Language:          getEnv("SHIMI_LANGUAGE", "auto"),
		SampleRate:        getEnvInt("SHIMI_SAMPLE_RATE", 16000),
		SilenceAfter:      getEnvDuration("SHIMI_SILENCE_AFTER", 600*time.Millisecond),
		MaxUtterance:      getEnvDuration("SHIMI_MAX_UTTERANCE", 15*time.Second),
		SocketPath:        getEnv("SHIMI_SOCKET", "/tmp/shimi.sock"),
	}
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "shimi-history.json"
	}
	return home + "/.shimi/history.json"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

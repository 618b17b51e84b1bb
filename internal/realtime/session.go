// Package realtime holds the full-duplex voice session: credential
// issuance, the websocket transport with its event translation, and the
// portaudio endpoints that feed and drain it.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	log "log/slog"
	"net/http"

	"shimi/internal/config"
	"shimi/internal/llm"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// Session is the short-lived credential minted for one realtime
// connection. The secret is used exactly once, to dial the transport.
type Session struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

type sessionRequest struct {
	Model                   string   `json:"model"`
	Voice                   string   `json:"voice"`
	Modalities              []string `json:"modalities"`
	Instructions            string   `json:"instructions"`
	InputAudioTranscription struct {
		Model string `json:"model"`
	} `json:"input_audio_transcription"`
	TurnDetection struct {
		Type              string  `json:"type"`
		Threshold         float64 `json:"threshold"`
		PrefixPaddingMs   int     `json:"prefix_padding_ms"`
		SilenceDurationMs int     `json:"silence_duration_ms"`
	} `json:"turn_detection"`
}

// Issuer mints realtime sessions. BaseURL and Client default to the
// public endpoint and http.DefaultClient.
type Issuer struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// Issue requests a fresh session. Any failure here aborts session
// establishment, there is no degraded realtime mode.
func (i *Issuer) Issue(ctx context.Context, cfg *config.Config) (*Session, error) {
	base := i.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	hc := i.Client
	if hc == nil {
		hc = http.DefaultClient
	}

	req := sessionRequest{
		Model:        cfg.RealtimeModel,
		Voice:        cfg.RealtimeVoice,
		Modalities:   []string{"audio", "text"},
		Instructions: llm.DefaultRealtimeInstructions,
	}
	req.InputAudioTranscription.Model = "whisper-1"
	req.TurnDetection.Type = "server_vad"
	req.TurnDetection.Threshold = 0.5
	req.TurnDetection.PrefixPaddingMs = 300
	req.TurnDetection.SilenceDurationMs = 500

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/realtime/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+i.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("issue session: status %d: %s", resp.StatusCode, payload)
	}

	var sess Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, fmt.Errorf("issue session: decode: %w", err)
	}
	if sess.ClientSecret.Value == "" {
		return nil, fmt.Errorf("issue session: empty client secret")
	}

	log.Debug("realtime session issued", "id", sess.ID, "model", sess.Model)
	return &sess, nil
}

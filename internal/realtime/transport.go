package realtime

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"net/url"

	ws "github.com/gorilla/websocket"

	"shimi/pkg/audioconv"
)

// SignalKind discriminates the transport events the conversation loop
// reacts to. Remote audio never surfaces as a signal, it goes straight
// to the speaker sink.
type SignalKind uint

const (
	SignalSpeechStarted SignalKind = iota
	SignalSpeechStopped
	SignalInputTranscript
	SignalOutputDelta
	SignalOutputDone
	SignalTurnComplete
	SignalError
	SignalClosed
)

type Signal struct {
	Kind SignalKind
	Text string
	Err  error
}

// AudioSink receives decoded remote PCM16 audio. Flush drops anything
// queued but not yet played, the barge-in action.
type AudioSink interface {
	Write(pcm []byte)
	Flush()
}

// Transport is the websocket side of a realtime session. Read with Run,
// write with SendAudio. Not reconnecting: a dropped connection ends the
// session and the user re-initiates.
type Transport struct {
	conn *ws.Conn
	sink AudioSink
}

// Dial opens the websocket using the session's one-shot client secret.
func Dial(baseURL string, sess *Session, sink AudioSink) (*Transport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/realtime"
	u.RawQuery = url.Values{"model": {sess.Model}}.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+sess.ClientSecret.Value)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, _, err := ws.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("dial realtime: %w", err)
	}
	return &Transport{conn: conn, sink: sink}, nil
}

func (t *Transport) Close() error { return t.conn.Close() }

// SendAudio forwards one microphone frame upstream.
func (t *Transport) SendAudio(samples []float32) error {
	pcm := audioconv.Float32ToPCM16LE(samples)
	payload, err := json.Marshal(map[string]string{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(pcm),
	})
	if err != nil {
		return err
	}
	return t.conn.WriteMessage(ws.TextMessage, payload)
}

type wsIncomeKind uint

const (
	connClose wsIncomeKind = iota
	readFailure
	readOK
)

type income struct {
	kind wsIncomeKind
	msg  []byte
	err  error
}

func (t *Transport) read() income {
	_, msg, err := t.conn.ReadMessage()
	if err != nil {
		if wsIsClosed(err) {
			return income{kind: connClose, err: err}
		}
		return income{kind: readFailure, err: err}
	}
	return income{kind: readOK, msg: msg}
}

func wsIsClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}

// Run reads and translates events until the connection drops, calling
// emit for every recognized signal. Audio deltas bypass emit and go to
// the sink; a start-of-speech flushes the sink before the signal fires
// so assistant audio stops the moment the user talks over it.
func (t *Transport) Run(emit func(Signal)) {
	for {
		in := t.read()
		switch in.kind {
		case connClose:
			emit(Signal{Kind: SignalClosed, Err: in.err})
			return

		case readFailure:
			emit(Signal{Kind: SignalClosed, Err: fmt.Errorf("read realtime: %w", in.err)})
			return

		case readOK:
			t.handle(in.msg, emit)
		}
	}
}

type serverEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`
	Error      struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (t *Transport) handle(raw []byte, emit func(Signal)) {
	var ev serverEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.Type == "" {
		// Frames we cannot parse are dropped, never fatal.
		log.Debug("discarding malformed realtime frame", "len", len(raw))
		return
	}

	switch ev.Type {
	case "input_audio_buffer.speech_started":
		t.sink.Flush()
		emit(Signal{Kind: SignalSpeechStarted})

	case "input_audio_buffer.speech_stopped":
		emit(Signal{Kind: SignalSpeechStopped})

	case "conversation.item.input_audio_transcription.completed":
		emit(Signal{Kind: SignalInputTranscript, Text: ev.Transcript})

	case "response.audio.delta":
		pcm, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			log.Debug("discarding undecodable audio delta", "err", err)
			return
		}
		t.sink.Write(pcm)

	case "response.audio_transcript.delta":
		emit(Signal{Kind: SignalOutputDelta, Text: ev.Delta})

	case "response.audio_transcript.done":
		emit(Signal{Kind: SignalOutputDone, Text: ev.Transcript})

	case "response.done":
		emit(Signal{Kind: SignalTurnComplete})

	case "error":
		emit(Signal{Kind: SignalError, Err: errors.New(ev.Error.Message)})

	default:
		// Plenty of event types carry nothing the loop needs.
		log.Debug("ignoring realtime event", "type", ev.Type)
	}
}

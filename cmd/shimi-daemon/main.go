package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"github.com/gordonklaus/portaudio"
	"github.com/openai/openai-go/v3/option"

	"shimi/internal/capture"
	"shimi/internal/config"
	"shimi/internal/history"
	"shimi/internal/ipc"
	"shimi/internal/kv"
	"shimi/internal/llm"
	"shimi/internal/orchestrator"
	"shimi/internal/playback"
	"shimi/internal/proxy"
	"shimi/internal/realtime"
	"shimi/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	mode := cli.StringP("mode", "m", "continuous", "Conversation mode: continuous | ptt | realtime")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address (empty = direct)")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up", "mode", *mode)

	godotenv.Load(*envFile)
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Error("OPENAI_API_KEY not set")
		os.Exit(1)
	}

	cfg := config.Load()

	var httpClient *http.Client
	if *proxyAddr != "" {
		var err error
		httpClient, err = proxy.NewSocksClient(*proxyAddr)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
			os.Exit(1)
		}
		log.Debug("Loaded proxy")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "continuous", "ptt":
		runLocal(ctx, cfg, apiKey, httpClient, *mode)
	case "realtime":
		runRealtime(ctx, cfg, apiKey, httpClient)
	default:
		log.Error("Unknown mode", "mode", *mode)
		os.Exit(1)
	}
}

// runLocal drives the continuous and push-to-talk variants: local
// capture, chat completion, speech synthesis, local playback.
func runLocal(ctx context.Context, cfg *config.Config, apiKey string, httpClient *http.Client, mode string) {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := llm.New(cfg, opts...)

	whisper, err := stt.NewTranscriber(cfg.WhisperModelPath)
	if err != nil {
		log.Error("Failed to init whisper", "err", err)
		os.Exit(1)
	}
	defer whisper.Close()
	log.Debug("Loaded whisper")

	engine, err := capture.NewMicEngine(whisper)
	if err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer engine.Close()
	log.Debug("Loaded recorder")

	os.MkdirAll(filepath.Dir(cfg.HistoryPath), 0o755)
	hist := history.NewStore(kv.NewFile(cfg.HistoryPath), cfg.HistoryLimit)

	orchMode := orchestrator.ModeContinuous
	if mode == "ptt" {
		orchMode = orchestrator.ModePushToTalk
	}

	capCfg := capture.Config{
		Language:     cfg.Language,
		SampleRate:   cfg.SampleRate,
		SilenceAfter: cfg.SilenceAfter,
		MaxUtterance: cfg.MaxUtterance,
	}

	orch := orchestrator.New(orchestrator.Options{
		Mode:              orchMode,
		ContextWindow:     cfg.ContextWindow,
		CompletionTimeout: cfg.CompletionTimeout,
		SynthesisTimeout:  cfg.SynthesisTimeout,
	}, orchestrator.Deps{
		History:     hist,
		Completer:   client,
		Synthesizer: client,
		Player:      playback.NewController(),
		NewCapturer: func(emit func(capture.Event)) orchestrator.Capturer {
			return capture.NewController(engine, capCfg, orchMode == orchestrator.ModeContinuous, emit)
		},
		Hooks: hooks(),
	})

	stopIPC, err := ipc.StartServer(cfg.SocketPath, func(msg ipc.ControlMessage) ipc.Reply {
		switch msg.Cmd {
		case ipc.CmdTrigger:
			orch.Arm()
		case ipc.CmdStop:
			orch.StopAndSend()
		case ipc.CmdClear:
			orch.ClearHistory()
		case ipc.CmdStatus:
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return ipc.Reply{State: orch.State().String(), Err: "unknown command"}
		}
		return ipc.Reply{State: orch.State().String(), Turns: hist.Len()}
	})
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer stopIPC()

	log.Info("Boot up - successful")

	if orchMode == orchestrator.ModeContinuous {
		orch.Arm()
	}
	orch.Run(ctx)
}

// runRealtime drives the full-duplex variant: everything but history
// and audio endpoints lives server-side.
func runRealtime(ctx context.Context, cfg *config.Config, apiKey string, httpClient *http.Client) {
	if err := portaudio.Initialize(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	os.MkdirAll(filepath.Dir(cfg.HistoryPath), 0o755)
	hist := history.NewStore(kv.NewFile(cfg.HistoryPath), cfg.HistoryLimit)

	issuer := &realtime.Issuer{APIKey: apiKey, Client: httpClient}
	sess, err := issuer.Issue(ctx, cfg)
	if err != nil {
		log.Error("Failed to issue realtime session", "err", err)
		os.Exit(1)
	}

	speaker, err := realtime.StartSpeaker()
	if err != nil {
		log.Error("Failed to open output device", "err", err)
		os.Exit(1)
	}
	defer speaker.Stop()

	transport, err := realtime.Dial(realtime.DefaultBaseURL, sess, speaker)
	if err != nil {
		log.Error("Failed to connect realtime transport", "err", err)
		os.Exit(1)
	}
	defer transport.Close()

	conv := realtime.NewConversation(hist, hooks())
	go transport.Run(conv.Handle)

	mic, err := realtime.StartMic(transport.SendAudio)
	if err != nil {
		log.Error("Failed to open input device", "err", err)
		os.Exit(1)
	}
	defer mic.Stop()

	stopIPC, err := ipc.StartServer(cfg.SocketPath, func(msg ipc.ControlMessage) ipc.Reply {
		switch msg.Cmd {
		case ipc.CmdClear:
			hist.Clear()
		case ipc.CmdStatus:
		default:
			return ipc.Reply{State: conv.State().String(), Err: "not available in realtime mode"}
		}
		return ipc.Reply{State: conv.State().String(), Turns: hist.Len()}
	})
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer stopIPC()

	log.Info("Boot up - successful")

	select {
	case <-ctx.Done():
	case <-conv.Done():
		log.Info("Realtime session ended")
	}
}

func hooks() orchestrator.Hooks {
	return orchestrator.Hooks{
		OnState:   func(s orchestrator.State) { log.Info("State", "state", s.String()) },
		OnError:   func(msg string) { log.Warn("Assistant error", "msg", msg) },
		OnInterim: func(text string) { log.Debug("Interim", "text", text) },
		OnReply:   func(text string) { log.Info("Reply", "text", text) },
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dictationd/dictationd/pkg/audiosrc"
	"github.com/dictationd/dictationd/pkg/dictation"
	"github.com/dictationd/dictationd/pkg/engine"
	"github.com/dictationd/dictationd/pkg/llmstream"
	"github.com/dictationd/dictationd/pkg/providers/stt"
	"github.com/dictationd/dictationd/pkg/statusbus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, using system environment variables")
	}

	groqKey := os.Getenv("GROQ_API_KEY")
	lightMode := os.Getenv("CT_LIGHT_MODE") == "1"
	verbose := os.Getenv("CT_VERBOSE") == "1"
	whitelist := splitWhitelist(os.Getenv("CT_LOG_WHITELIST"))

	modelRuntimeHost := os.Getenv("MODEL_RUNTIME_HOST")
	if modelRuntimeHost == "" {
		modelRuntimeHost = "localhost:8700"
	}

	cfg := dictation.DefaultConfig()
	logger := dictation.NewStdLogger(os.Stderr)

	rotate, err := statusbus.NewRotatingLog(rotateLogPath(), 10*1024*1024, 3)
	if err != nil {
		log.Fatalf("open rotating log: %v", err)
	}
	defer rotate.Close()

	bus := statusbus.NewBus(os.Stdout, rotate, whitelist)
	bus.SetVerbose(verbose)

	// The ASR transcriber loads unconditionally: CT_LIGHT_MODE only skips
	// the heavy LLM runtime (spec.md §6.3), and dictation must keep
	// working with just ASR loaded (spec.md §7's ModelLoad policy).
	if groqKey == "" {
		log.Fatal("Error: GROQ_API_KEY must be set")
	}
	groqModel := os.Getenv("GROQ_STT_MODEL")
	groq := stt.NewGroqSTT(groqKey, groqModel)
	groq.SetSampleRate(cfg.SampleRate)
	var transcriber dictation.Transcriber = groq
	transcriberID := groq.Name()

	var runtime engine.LLMRuntime
	if !lightMode {
		runtime = llmstream.NewRuntimeClient(modelRuntimeHost)
	}

	models := map[dictation.Mode]engine.ProviderDescriptor{}
	if transcriberID != "" {
		models[dictation.ModeDictate] = engine.ProviderDescriptor{Kind: "stt", ID: transcriberID, DisplayName: transcriberID}
	}
	for mode, mc := range cfg.Modes {
		if mc.ModelID != "" {
			models[mode] = engine.ProviderDescriptor{Kind: "llm", ID: mc.ModelID, DisplayName: mc.ModelID}
		}
	}

	eng := engine.New(cfg, engine.Options{
		Transcriber:   transcriber,
		TranscriberID: transcriberID,
		Runtime:       runtime,
		Bus:           bus,
		Cache:         newCacheIfEnabled(),
		Logger:        logger,
		ModelSelection: models,
	})

	src, err := audiosrc.New(cfg, logger)
	if err != nil {
		log.Fatalf("audio source: %v", err)
	}
	defer src.Close()
	src.OnDrop(func() {
		logger.Warn("audio frame dropped: downstream consumer too slow")
	})
	if err := src.Start(); err != nil {
		log.Fatalf("start audio capture: %v", err)
	}

	inbound := make(chan statusbus.InboundMessage, 16)
	go func() {
		defer close(inbound)
		if err := statusbus.ReadInbound(os.Stdin, func(msg statusbus.InboundMessage) {
			inbound <- msg
		}); err != nil {
			logger.Error("read inbound: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	fmt.Fprintf(os.Stderr, "dictationd: ASR=%s light_mode=%t listening on default input device\n", transcriberDisplay(transcriberID), lightMode)

	if err := eng.Run(ctx, src.Frames(), inbound); err != nil && ctx.Err() == nil {
		log.Fatalf("engine run: %v", err)
	}
}

func transcriberDisplay(id string) string {
	if id == "" {
		return "none"
	}
	return id
}

func splitWhitelist(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func rotateLogPath() string {
	if p := os.Getenv("CT_LOG_PATH"); p != "" {
		return p
	}
	return "dictationd.log"
}

func newCacheIfEnabled() *dictation.UtteranceCache {
	if on, _ := strconv.ParseBool(os.Getenv("CT_UTTERANCE_CACHE")); on {
		return dictation.NewUtteranceCache()
	}
	return nil
}

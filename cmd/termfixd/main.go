// Command termfixd is the terminal history and quick-fix daemon. Host
// editors feed it terminal output and completed commands over HTTP and
// receive suggestions, dispatches, and activity over the realtime feed.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/termfix/termfix/internal/api"
	"github.com/termfix/termfix/internal/buffer"
	"github.com/termfix/termfix/internal/llm"
	"github.com/termfix/termfix/internal/present"
	"github.com/termfix/termfix/internal/quickfix"
	"github.com/termfix/termfix/internal/realtime"
	"github.com/termfix/termfix/internal/storage"
)

const (
	breakerThreshold = 3
	breakerCooldown  = 30 * time.Second
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4160", "listen address")
	baseDir := flag.String("base-dir", storage.DefaultBaseDir(), "data directory for rules and fix history")
	model := flag.String("model", "", "chat model for fix suggestions (empty uses the default)")
	windowSize := flag.Int("window", buffer.DefaultWindowSize, "per-terminal chunk and command window size")
	flag.Parse()

	var backend llm.Backend
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		backend = llm.NewOpenAIBackend(apiKey, *model)
	} else {
		log.Println("OPENAI_API_KEY not set, fix suggestions disabled")
		backend = llm.Unavailable{}
	}
	backend = llm.NewBreakerBackend(backend, breakerThreshold, breakerCooldown)

	rulesPath := quickfix.RulesPathIn(*baseDir)
	cfg, err := quickfix.LoadRuleConfig(rulesPath)
	if err != nil {
		log.Fatalf("load rules config: %v", err)
	}
	if cfg == nil {
		cfg = quickfix.DefaultRuleConfig()
	}
	matcher, err := quickfix.NewMatcher(cfg)
	if err != nil {
		log.Fatalf("compile rules config: %v", err)
	}

	history, err := storage.NewJSONFixHistory(*baseDir)
	if err != nil {
		log.Fatalf("open fix history: %v", err)
	}

	buffers := buffer.NewStore(*windowSize)
	defer buffers.Close()

	hub := realtime.NewHub()
	tracker := quickfix.NewTracker()
	engine := quickfix.NewEngine(backend, backend, nil, buffers)
	presenter := present.NewPresenter(realtime.NewInputDispatcher(hub), history, buffers.Events())

	handler := api.NewHandler(buffers, matcher, tracker, engine, presenter, history, rulesPath, hub)

	router := chi.NewRouter()
	handler.Mount(router)

	log.Printf("termfixd listening on %s", *addr)
	if err := http.ListenAndServe(*addr, router); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// mcpchat is the line-oriented variant of the interactive MCP client.
// Positional arguments form an initial question; without one it starts the
// interactive loop directly.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/finna-data/mcpchat/observability"
	"github.com/finna-data/mcpchat/session"
	"github.com/finna-data/mcpchat/transcript"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to config JSON file (optional)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to mcpchat.log")
	)
	flag.Parse()

	cfg := session.DefaultConfig()
	if *configFile != "" {
		loaded, err := session.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}
	env := session.FromEnv()
	cfg.Merge(&env)

	stderrLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	observer := observability.Observer(observability.NewSlogObserver(stderrLogger))
	if *verbose {
		// Debug events go to a file so they do not interleave with the
		// prompt output on stderr.
		logFile, err := os.OpenFile("mcpchat.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer logFile.Close()
		fileLogger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}))
		observer = observability.Tee(observer, observability.NewSlogObserver(fileLogger))
	}

	s, err := session.New(cfg, session.WithObserver(observer))
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	if err := s.Connect(context.Background()); err != nil {
		log.Fatalf("Failed to connect to MCP server at %s: %v", cfg.MCPURL, err)
	}
	defer s.Close()

	printer := &entryPrinter{transcript: s.Transcript()}

	runTurn := func(input string) bool {
		disp, turn := s.Submit(input)
		switch disp {
		case session.DispositionExit:
			return false
		case session.DispositionAsk:
			awaitTurn(turn, sigCh, s.Cancel)
		}
		printer.flush()
		if strings.EqualFold(strings.TrimSpace(input), "/clear") {
			fmt.Println("History cleared.")
		}
		return true
	}

	if question := strings.TrimSpace(strings.Join(flag.Args(), " ")); question != "" {
		if !runTurn(question) {
			return
		}
	}

	reader := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nAsk a question (/clear to reset, /exit to quit): ")
		if !reader.Scan() {
			return
		}
		if !runTurn(reader.Text()) {
			return
		}
	}
}

// awaitTurn blocks until the turn resolves, cancelling it when an interrupt
// arrives. An interrupt raised earlier, at the idle prompt, is discarded
// first so it cannot cancel a turn that had not started yet.
func awaitTurn(turn *session.Turn, sigCh chan os.Signal, cancel func()) {
	select {
	case <-sigCh:
	default:
	}

	select {
	case <-turn.Done():
	case <-sigCh:
		cancel()
		<-turn.Done()
	}
}

// entryPrinter prints transcript entries added since the previous flush.
type entryPrinter struct {
	transcript *transcript.Log
	seen       int
}

func (p *entryPrinter) flush() {
	entries := p.transcript.Entries()
	if len(entries) < p.seen {
		p.seen = 0
	}

	for _, e := range entries[p.seen:] {
		switch e.Kind {
		case transcript.KindUser:
			// The user just typed it.
		case transcript.KindAssistant:
			fmt.Printf("\nLLM RESPONSE:\n%s\n", e.Text)
		case transcript.KindToolCall:
			fmt.Printf("\nMCP CALL: %s\n", e.Text)
		case transcript.KindToolResponse:
			fmt.Printf("MCP RESPONSE: %s\n", e.Text)
		case transcript.KindSystem:
			fmt.Printf("\n%s\n", e.Text)
		case transcript.KindError:
			fmt.Printf("\nERROR: %s\n", e.Text)
		}
	}
	p.seen = len(entries)
}

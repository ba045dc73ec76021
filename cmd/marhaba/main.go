// Package main is a terminal client for bilingual voice conversations.
//
// It connects to an empathic voice channel, streams microphone audio up,
// plays assistant audio back, and renders a transcript where every user
// line is annotated with its detected language (Arabic or English), a
// translation into the other language, and the speaker's top emotions.
//
// Usage:
//
//	go run ./cmd/marhaba
//
// Environment variables:
//
//	MARHABA_API_KEY    - Required
//	MARHABA_SECRET_KEY - Required
//	MARHABA_CONFIG_ID  - Required
//
// Commands:
//
//	/new                       Clear the transcript
//	/lang auto|english|arabic  Set the input language preference
//	/quit                      End the session
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/marhaba-voice/marhaba/internal/config"
	"github.com/marhaba-voice/marhaba/pkg/audio"
	"github.com/marhaba-voice/marhaba/pkg/chat"
	"github.com/marhaba-voice/marhaba/pkg/evi"
	"github.com/marhaba-voice/marhaba/pkg/translate"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "marhaba:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	// Audio is best effort: a headless host still gets a listening-only
	// session with a note in the transcript.
	var source chat.AudioSource
	mic, err := audio.OpenMicrophone(cfg.SampleRate, cfg.Channels)
	if err != nil {
		logger.Warn("microphone unavailable", "err", err)
	} else {
		source = mic
	}

	var sink chat.AudioSink
	var monitor chat.PlaybackMonitor
	speaker, err := audio.OpenSpeaker(cfg.SampleRate, cfg.Channels)
	if err != nil {
		logger.Warn("speaker unavailable", "err", err)
	} else {
		defer speaker.Close()
		sink = speaker
		monitor = speaker
	}

	translator := translate.NewClient(cfg.TranslateURL, &http.Client{
		Timeout: cfg.TranslateTimeout,
	})

	handler := chat.NewHandler(chat.HandlerOptions{
		Translator:    translator,
		Sink:          sink,
		Logger:        logger,
		InputLanguage: chat.InputLanguage(cfg.InputLanguage),
	})

	connect := func(ctx context.Context, h evi.Handler) (chat.Channel, error) {
		return evi.Connect(ctx, evi.ConnectOptions{
			APIKey:    cfg.APIKey,
			SecretKey: cfg.SecretKey,
			ConfigID:  cfg.ConfigID,
			BaseURL:   cfg.ChatURL,
			Logger:    logger,
			Audio: &evi.AudioSettings{
				Encoding:   audio.Encoding,
				SampleRate: cfg.SampleRate,
				Channels:   cfg.Channels,
			},
		}, h)
	}

	runner := chat.NewRunner(chat.RunnerOptions{
		Connect:        connect,
		Handler:        handler,
		Source:         source,
		Monitor:        monitor,
		AllowInterrupt: cfg.AllowUserInterrupt,
		Logger:         logger,
	})
	if err := runner.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "marhaba:", err)
		os.Exit(1)
	}

	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		renderTranscript(runner.Done(), os.Stdout, handler, cfg.PollInterval)
	}()
	go commandLoop(handler, cancel)

	<-runner.Done()
	<-renderDone
}

// renderTranscript polls the handler and prints entries it has not shown
// yet. The transcript is append-only, so the cursor only moves forward; a
// shrink means the conversation was reset. When the session ends it
// drains one last time so closing entries are not lost to the poll
// interval, then returns.
func renderTranscript(done <-chan struct{}, w io.Writer, h *chat.Handler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	shown := 0
	drain := func() {
		entries := h.Snapshot()
		if len(entries) < shown {
			shown = 0
		}
		for _, entry := range entries[shown:] {
			printEntry(w, entry)
		}
		shown = len(entries)
	}

	for {
		select {
		case <-done:
			drain()
			return
		case <-ticker.C:
			drain()
		}
	}
}

func printEntry(w io.Writer, e chat.TranscriptEntry) {
	ts := e.Timestamp.Format("15:04:05")

	switch e.Kind {
	case chat.KindSystem:
		fmt.Fprintf(w, "[%s] * %s\n", ts, e.Message)
	case chat.KindError:
		fmt.Fprintf(w, "[%s] ! %s\n", ts, e.Message)
	case chat.KindUser:
		fmt.Fprintf(w, "[%s] You (%s): %s\n", ts, e.DetectedLanguage, e.Message)
		if e.HasTranslation {
			fmt.Fprintf(w, "           ↳ %s\n", e.Translation)
		}
		if line := emotionLine(e); line != "" {
			fmt.Fprintf(w, "           %s\n", line)
		}
	case chat.KindAssistant:
		fmt.Fprintf(w, "[%s] Assistant: %s\n", ts, e.Message)
		if line := emotionLine(e); line != "" {
			fmt.Fprintf(w, "           %s\n", line)
		}
	}
}

func emotionLine(e chat.TranscriptEntry) string {
	if len(e.Emotions) == 0 {
		return ""
	}
	parts := make([]string, 0, len(e.Emotions))
	for _, em := range e.Emotions {
		parts = append(parts, fmt.Sprintf("%s %.2f", em.Name, em.Score))
	}
	return "~ " + strings.Join(parts, ", ")
}

// commandLoop reads slash commands from stdin until /quit or EOF.
func commandLoop(h *chat.Handler, quit context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit", line == "q":
			quit()
			return
		case line == "/new":
			h.ResetConversation()
			fmt.Println("* Conversation cleared.")
		case strings.HasPrefix(line, "/lang"):
			arg := strings.TrimSpace(strings.TrimPrefix(line, "/lang"))
			switch arg {
			case "auto", "english", "arabic":
				h.SetInputLanguage(chat.InputLanguage(arg))
				fmt.Printf("* Input language set to %s.\n", arg)
			default:
				fmt.Println("* Usage: /lang auto|english|arabic")
			}
		default:
			fmt.Println("* Commands: /new, /lang auto|english|arabic, /quit")
		}
	}
	quit()
}

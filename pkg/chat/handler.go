package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/marhaba-voice/marhaba/pkg/evi"
	"github.com/marhaba-voice/marhaba/pkg/lang"
)

// InputLanguage is the user's language preference for their own speech.
// Auto defers to per-message detection.
type InputLanguage string

const (
	InputAuto    InputLanguage = "auto"
	InputEnglish InputLanguage = "english"
	InputArabic  InputLanguage = "arabic"
)

// Translator renders text into a target language code. ok=false means no
// translation is available; the caller proceeds without one.
type Translator interface {
	Translate(ctx context.Context, text, target string) (translated string, ok bool)
}

// AudioSink consumes decoded assistant audio for playback. Implementations
// must not block the caller for the duration of playback.
type AudioSink interface {
	Play(data []byte)
}

const (
	connectedMessage = "Connection established. You can start speaking now."
	closedMessage    = "Connection closed."
)

// Handler turns chat channel events into an annotated transcript. Events
// arrive sequentially from the socket; the mutex only guards against
// concurrent Snapshot, SetInputLanguage, and ResetConversation callers.
type Handler struct {
	translator Translator
	sink       AudioSink
	logger     *slog.Logger
	now        func() time.Time

	mu        sync.Mutex
	connected bool
	pref      InputLanguage
	entries   []TranscriptEntry
	lastTS    time.Time
}

// HandlerOptions configures a new Handler. Translator is required for
// translation annotations; a nil Translator disables them. A nil Sink
// discards assistant audio.
type HandlerOptions struct {
	Translator    Translator
	Sink          AudioSink
	Logger        *slog.Logger
	InputLanguage InputLanguage

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewHandler returns a handler with an empty transcript.
func NewHandler(opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	pref := opts.InputLanguage
	if pref == "" {
		pref = InputAuto
	}
	return &Handler{
		translator: opts.Translator,
		sink:       opts.Sink,
		logger:     logger,
		now:        now,
		pref:       pref,
	}
}

// OnOpen records that the channel is live.
func (h *Handler) OnOpen() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = true
	h.appendLocked(TranscriptEntry{Kind: KindSystem, Message: connectedMessage})
}

// OnClose records the end of the channel.
func (h *Handler) OnClose() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connected {
		return
	}
	h.connected = false
	h.appendLocked(TranscriptEntry{Kind: KindSystem, Message: closedMessage})
}

// OnError records a transport or protocol failure as an error entry.
func (h *Handler) OnError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appendLocked(TranscriptEntry{Kind: KindError, Message: err.Error()})
}

// OnMessage dispatches one inbound event. User and assistant speech become
// transcript entries; audio goes to the sink; unrecognized kinds are
// ignored.
func (h *Handler) OnMessage(event evi.Event) {
	switch e := event.(type) {
	case evi.UserMessageEvent:
		h.handleUserMessage(e)
	case evi.AssistantMessageEvent:
		h.handleAssistantMessage(e)
	case evi.AudioOutputEvent:
		h.handleAudioOutput(e)
	case evi.ErrorEvent:
		h.handleErrorEvent(e)
	default:
		if event.EventType() == evi.TypeUserInterruption {
			h.handleInterruption()
			return
		}
		h.logger.Debug("ignoring event", "type", event.EventType())
	}
}

// handleInterruption discards queued assistant audio so the user is not
// talked over after barging in.
func (h *Handler) handleInterruption() {
	if flusher, ok := h.sink.(interface{ Flush() }); ok {
		flusher.Flush()
	}
}

func (h *Handler) handleUserMessage(e evi.UserMessageEvent) {
	text := strings.TrimSpace(e.Message.Content)
	detected := h.resolveLanguage(text)
	emotions := TopEmotions(prosodyScores(e.Models), topEmotionCount)

	// Translation runs before taking the lock: it is a network call and
	// must not stall Snapshot readers.
	var translation string
	var translated bool
	if h.translator != nil {
		translation, translated = h.translator.Translate(
			context.Background(), text, detected.Counter().Code())
		if !translated {
			h.logger.Debug("translation unavailable", "language", detected)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.appendLocked(TranscriptEntry{
		Kind:             KindUser,
		Message:          text,
		Emotions:         emotions,
		DetectedLanguage: detected,
		Translation:      translation,
		HasTranslation:   translated,
	})
}

func (h *Handler) handleAssistantMessage(e evi.AssistantMessageEvent) {
	text := strings.TrimSpace(e.Message.Content)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.appendLocked(TranscriptEntry{
		Kind:     KindAssistant,
		Message:  text,
		Emotions: TopEmotions(prosodyScores(e.Models), topEmotionCount),
	})
}

func (h *Handler) handleAudioOutput(e evi.AudioOutputEvent) {
	if h.sink == nil {
		return
	}
	data, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		h.logger.Warn("dropping undecodable audio chunk", "id", e.ID, "err", err)
		return
	}
	h.sink.Play(data)
}

func (h *Handler) handleErrorEvent(e evi.ErrorEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appendLocked(TranscriptEntry{
		Kind:    KindError,
		Message: fmt.Sprintf("Error (%s): %s", e.Code, e.Message),
	})
}

// SetInputLanguage changes the language preference for subsequent user
// entries. Existing entries are not revisited.
func (h *Handler) SetInputLanguage(pref InputLanguage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pref = pref
}

// InputLanguage reports the current preference.
func (h *Handler) InputLanguage() InputLanguage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pref
}

// ResetConversation discards the transcript. Connection state and the
// language preference survive a reset.
func (h *Handler) ResetConversation() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// Connected reports whether the channel is currently live.
func (h *Handler) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

// Snapshot returns a copy of the transcript so far. The copy is safe to
// read while the handler keeps appending.
func (h *Handler) Snapshot() []TranscriptEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]TranscriptEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// resolveLanguage applies the preference, falling back to detection.
func (h *Handler) resolveLanguage(text string) lang.Language {
	h.mu.Lock()
	pref := h.pref
	h.mu.Unlock()

	switch pref {
	case InputEnglish:
		return lang.English
	case InputArabic:
		return lang.Arabic
	default:
		return lang.Detect(text)
	}
}

// appendLocked stamps and appends one entry. Timestamps are UTC and never
// decrease, even if the wall clock steps backward between entries.
func (h *Handler) appendLocked(entry TranscriptEntry) {
	ts := h.now().UTC()
	if ts.Before(h.lastTS) {
		ts = h.lastTS
	}
	h.lastTS = ts
	entry.Timestamp = ts
	h.entries = append(h.entries, entry)
}

func prosodyScores(m evi.Inference) evi.EmotionScores {
	if m.Prosody == nil {
		return nil
	}
	return m.Prosody.Scores
}

// Package chat contains the session layer: a handler that turns channel
// events into an annotated transcript, and a runner that owns the
// connection lifecycle around it.
package chat

import (
	"time"

	"github.com/marhaba-voice/marhaba/pkg/evi"
	"github.com/marhaba-voice/marhaba/pkg/lang"
)

// EntryKind classifies a transcript entry by who produced it.
type EntryKind string

const (
	KindSystem    EntryKind = "system"
	KindUser      EntryKind = "user"
	KindAssistant EntryKind = "assistant"
	KindError     EntryKind = "error"
)

// TranscriptEntry is one rendered line of the conversation. The transcript
// is append-only; entries are never edited after the fact.
type TranscriptEntry struct {
	// Timestamp is UTC and non-decreasing across the transcript.
	Timestamp time.Time
	Kind      EntryKind
	Message   string

	// Emotions holds the top-ranked emotion scores for speech entries,
	// strongest first. Empty for system and error entries.
	Emotions []evi.EmotionScore

	// DetectedLanguage is set on user entries only.
	DetectedLanguage lang.Language

	// Translation is the user's text rendered into the counterpart
	// language. Empty when translation was unavailable; HasTranslation
	// distinguishes that from an empty result.
	Translation    string
	HasTranslation bool
}

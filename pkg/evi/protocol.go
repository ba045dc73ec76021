package evi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Inbound event type strings on the chat socket.
const (
	TypeChatMetadata     = "chat_metadata"
	TypeUserMessage      = "user_message"
	TypeAssistantMessage = "assistant_message"
	TypeAssistantEnd     = "assistant_end"
	TypeUserInterruption = "user_interruption"
	TypeAudioOutput      = "audio_output"
	TypeError            = "error"
)

// Outbound message type strings.
const (
	TypeAudioInput      = "audio_input"
	TypeSessionSettings = "session_settings"
)

// Event is one inbound notification decoded from the chat socket.
type Event interface {
	// EventType returns the wire type string of the event.
	EventType() string
}

// ChatMetadataEvent carries identifiers for the newly opened chat.
type ChatMetadataEvent struct {
	ChatID      string `json:"chat_id"`
	ChatGroupID string `json:"chat_group_id"`
}

func (e ChatMetadataEvent) EventType() string { return TypeChatMetadata }

// UserMessageEvent is a finalized user speech turn with its transcription
// and prosody model output.
type UserMessageEvent struct {
	Message  ChatMessage `json:"message"`
	Models   Inference   `json:"models"`
	FromText bool        `json:"from_text"`
}

func (e UserMessageEvent) EventType() string { return TypeUserMessage }

// AssistantMessageEvent is one assistant speech segment with its prosody
// model output.
type AssistantMessageEvent struct {
	ID      string      `json:"id"`
	Message ChatMessage `json:"message"`
	Models  Inference   `json:"models"`
}

func (e AssistantMessageEvent) EventType() string { return TypeAssistantMessage }

// AudioOutputEvent carries one chunk of assistant audio. Data is the
// payload in its base64 transport encoding; consumers decode it before
// playback.
type AudioOutputEvent struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

func (e AudioOutputEvent) EventType() string { return TypeAudioOutput }

// ErrorEvent is a protocol-level error reported by the channel. Error
// events are fatal to the session.
type ErrorEvent struct {
	Code    string `json:"code"`
	Slug    string `json:"slug"`
	Message string `json:"message"`
}

func (e ErrorEvent) EventType() string { return TypeError }

// UnknownEvent wraps an inbound type this client does not recognize.
// Unknown kinds are delivered, not dropped, so handlers can decide to
// ignore them without the decoder failing on protocol additions.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) EventType() string { return e.Type }

// ChatMessage is the role/content pair inside user and assistant events.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Inference holds per-message model output. Only prosody is consumed here.
type Inference struct {
	Prosody *Prosody `json:"prosody,omitempty"`
}

// Prosody is the emotion inference attached to a speech segment.
type Prosody struct {
	Scores EmotionScores `json:"scores"`
}

// EmotionScore is one named emotion with its confidence score.
type EmotionScore struct {
	Name  string
	Score float64
}

// EmotionScores is an emotion score mapping that preserves the order the
// keys appeared on the wire. Order matters: ranking ties are broken by
// wire order, so decoding into a Go map would make them nondeterministic.
type EmotionScores []EmotionScore

// UnmarshalJSON decodes a JSON object token by token, keeping key order.
func (s *EmotionScores) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil { // JSON null
		*s = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("emotion scores: expected object, got %v", tok)
	}

	out := EmotionScores{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("emotion scores: non-string key %v", keyTok)
		}
		var score float64
		if err := dec.Decode(&score); err != nil {
			return fmt.Errorf("emotion scores: score for %q: %w", name, err)
		}
		out = append(out, EmotionScore{Name: name, Score: score})
	}
	if _, err := dec.Token(); err != nil { // closing brace
		return err
	}

	*s = out
	return nil
}

// MarshalJSON renders the scores back as an object in their stored order.
func (s EmotionScores) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, score := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(score.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(score.Score)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// AudioInput is an outbound microphone audio frame. Data carries the raw
// bytes in base64 transport encoding.
type AudioInput struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// SessionSettings configures the live chat right after connect.
type SessionSettings struct {
	Type  string         `json:"type"`
	Audio *AudioSettings `json:"audio,omitempty"`
}

// AudioSettings describes the outbound audio format.
type AudioSettings struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// DecodeEvent decodes one inbound socket message into its typed event.
// Types this client does not recognize decode into UnknownEvent; only a
// payload that fails to parse at all is an error.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}

	switch head.Type {
	case TypeChatMetadata:
		var e ChatMetadataEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return e, nil
	case TypeUserMessage:
		var e UserMessageEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return e, nil
	case TypeAssistantMessage:
		var e AssistantMessageEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return e, nil
	case TypeAudioOutput:
		var e AudioOutputEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return e, nil
	case TypeError:
		var e ErrorEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return e, nil
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return UnknownEvent{Type: head.Type, Raw: raw}, nil
	}
}

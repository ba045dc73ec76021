package evi

import (
	"encoding/json"
	"testing"
)

func TestDecodeEventUserMessage(t *testing.T) {
	data := []byte(`{
		"type": "user_message",
		"message": {"role": "user", "content": "Hello there"},
		"models": {"prosody": {"scores": {"joy": 0.9, "anger": 0.1, "sadness": 0.5}}},
		"from_text": false
	}`)

	event, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	msg, ok := event.(UserMessageEvent)
	if !ok {
		t.Fatalf("decoded %T, want UserMessageEvent", event)
	}
	if msg.Message.Content != "Hello there" {
		t.Errorf("content = %q", msg.Message.Content)
	}
	if msg.Message.Role != "user" {
		t.Errorf("role = %q", msg.Message.Role)
	}
	if msg.Models.Prosody == nil {
		t.Fatal("prosody missing")
	}
	scores := msg.Models.Prosody.Scores
	if len(scores) != 3 {
		t.Fatalf("got %d scores, want 3", len(scores))
	}
	if scores[0].Name != "joy" || scores[1].Name != "anger" || scores[2].Name != "sadness" {
		t.Errorf("score order not preserved: %v", scores)
	}
}

func TestDecodeEventAssistantMessage(t *testing.T) {
	data := []byte(`{
		"type": "assistant_message",
		"id": "seg-1",
		"message": {"role": "assistant", "content": "How can I help?"},
		"models": {"prosody": {"scores": {"calm": 0.8}}}
	}`)

	event, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	msg, ok := event.(AssistantMessageEvent)
	if !ok {
		t.Fatalf("decoded %T, want AssistantMessageEvent", event)
	}
	if msg.ID != "seg-1" {
		t.Errorf("id = %q", msg.ID)
	}
	if msg.Message.Content != "How can I help?" {
		t.Errorf("content = %q", msg.Message.Content)
	}
}

func TestDecodeEventAudioOutput(t *testing.T) {
	data := []byte(`{"type": "audio_output", "id": "a-1", "data": "UklGRg=="}`)

	event, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	audio, ok := event.(AudioOutputEvent)
	if !ok {
		t.Fatalf("decoded %T, want AudioOutputEvent", event)
	}
	if audio.Data != "UklGRg==" {
		t.Errorf("data = %q", audio.Data)
	}
}

func TestDecodeEventError(t *testing.T) {
	data := []byte(`{"type": "error", "code": "E0101", "slug": "bad_config", "message": "config not found"}`)

	event, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	ev, ok := event.(ErrorEvent)
	if !ok {
		t.Fatalf("decoded %T, want ErrorEvent", event)
	}
	if ev.Code != "E0101" || ev.Slug != "bad_config" {
		t.Errorf("error event = %+v", ev)
	}
}

func TestDecodeEventUnknownType(t *testing.T) {
	data := []byte(`{"type": "tool_call", "name": "lookup"}`)

	event, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("unknown type must not fail: %v", err)
	}
	unknown, ok := event.(UnknownEvent)
	if !ok {
		t.Fatalf("decoded %T, want UnknownEvent", event)
	}
	if unknown.EventType() != "tool_call" {
		t.Errorf("type = %q", unknown.EventType())
	}
}

func TestDecodeEventMalformed(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestEmotionScoresPreserveWireOrder(t *testing.T) {
	// Ties in ranking are broken by arrival order, so the decoder must
	// not shuffle keys the way a map would.
	data := []byte(`{"zeta": 0.5, "alpha": 0.5, "mid": 0.5}`)

	var scores EmotionScores
	if err := json.Unmarshal(data, &scores); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"zeta", "alpha", "mid"}
	for i, name := range want {
		if scores[i].Name != name {
			t.Fatalf("scores[%d] = %q, want %q (order lost)", i, scores[i].Name, name)
		}
	}
}

func TestEmotionScoresNull(t *testing.T) {
	var scores EmotionScores
	if err := json.Unmarshal([]byte(`null`), &scores); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if scores != nil {
		t.Errorf("scores = %v, want nil", scores)
	}
}

func TestEmotionScoresRejectNonObject(t *testing.T) {
	var scores EmotionScores
	if err := json.Unmarshal([]byte(`[1, 2]`), &scores); err == nil {
		t.Error("expected error for non-object scores")
	}
}

func TestEmotionScoresMarshalRoundTrip(t *testing.T) {
	in := EmotionScores{{Name: "joy", Score: 0.9}, {Name: "calm", Score: 0.5}}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out EmotionScores
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 2 || out[0].Name != "joy" || out[1].Name != "calm" {
		t.Errorf("round trip lost order: %v", out)
	}
}

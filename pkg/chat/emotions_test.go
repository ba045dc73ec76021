package chat

import (
	"testing"

	"github.com/marhaba-voice/marhaba/pkg/evi"
)

func TestTopEmotionsRanksAndTruncates(t *testing.T) {
	scores := evi.EmotionScores{
		{Name: "joy", Score: 0.9},
		{Name: "anger", Score: 0.1},
		{Name: "sadness", Score: 0.5},
		{Name: "calm", Score: 0.5},
	}

	got := TopEmotions(scores, 3)
	if len(got) != 3 {
		t.Fatalf("got %d emotions, want 3", len(got))
	}
	if got[0].Name != "joy" {
		t.Errorf("top emotion = %q, want joy", got[0].Name)
	}
	// sadness and calm tie at 0.5; arrival order breaks the tie.
	if got[1].Name != "sadness" || got[2].Name != "calm" {
		t.Errorf("tied emotions out of arrival order: %v", got)
	}
}

func TestTopEmotionsFewerThanRequested(t *testing.T) {
	scores := evi.EmotionScores{{Name: "joy", Score: 0.7}}
	got := TopEmotions(scores, 3)
	if len(got) != 1 || got[0].Name != "joy" {
		t.Errorf("got %v, want single joy entry", got)
	}
}

func TestTopEmotionsEmpty(t *testing.T) {
	if got := TopEmotions(nil, 3); got != nil {
		t.Errorf("got %v, want nil for empty scores", got)
	}
	if got := TopEmotions(evi.EmotionScores{{Name: "joy", Score: 1}}, 0); got != nil {
		t.Errorf("got %v, want nil for n=0", got)
	}
}

func TestTopEmotionsDoesNotMutateInput(t *testing.T) {
	scores := evi.EmotionScores{
		{Name: "anger", Score: 0.1},
		{Name: "joy", Score: 0.9},
	}
	TopEmotions(scores, 2)
	if scores[0].Name != "anger" {
		t.Error("input slice was reordered")
	}
}

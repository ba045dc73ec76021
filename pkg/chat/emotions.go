package chat

import (
	"sort"

	"github.com/marhaba-voice/marhaba/pkg/evi"
)

// topEmotionCount is how many ranked emotions a transcript entry keeps.
const topEmotionCount = 3

// TopEmotions ranks scores strongest-first and returns at most n of them.
// The sort is stable, so equal scores keep the order they arrived in.
func TopEmotions(scores evi.EmotionScores, n int) []evi.EmotionScore {
	if len(scores) == 0 || n <= 0 {
		return nil
	}

	ranked := make([]evi.EmotionScore, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

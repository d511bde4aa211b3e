package predictor

import (
	"math"
	"strconv"

	"github.com/synaptica-ai/healthrisk/pkg/common/models"
)

// Format clips each raw score to [0, 1] and converts it to a percentage with
// two decimals. Categories are independent; nothing is renormalised.
func Format(raw RawScores) models.RiskScorecard {
	card := make(models.RiskScorecard, len(raw))
	for i, score := range raw {
		card[i] = models.RiskScore{Category: score.Category, Percent: toPercent(score.Value)}
	}
	return card
}

// toPercent rounds the exact binary value of the percentage to two decimals,
// ties to even.
func toPercent(value float64) float64 {
	clipped := math.Min(math.Max(value, 0), 1)
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(clipped*100, 'f', 2, 64), 64)
	return rounded
}

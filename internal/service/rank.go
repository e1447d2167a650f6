package service

import (
	"strconv"

	"github.com/digkill/StageRank/internal/models"
)

// ComputeRank turns raw stage counts into competition ranks and percentiles.
// A percentile is the share of all attempts, this one included, that are
// strictly better, so the unique best attempt scores 0.
func ComputeRank(c models.RankCounts) models.Rank {
	return models.Rank{
		RankByTime:      c.Faster + 1,
		TimePercentile:  percentile(c.Faster, c.Total),
		RankByTokens:    c.Shorter + 1,
		TokenPercentile: percentile(c.Shorter, c.Total),
		Total:           c.Total,
	}
}

func percentile(better, total int64) float64 {
	if total <= 0 {
		return 0.0
	}
	return round2(float64(better) / float64(total) * 100)
}

// round2 rounds half to even on the exact binary value, the same result as
// formatting with two decimals.
func round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}

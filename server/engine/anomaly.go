package engine

const (
	FlagAFK            = "afk-like session"
	FlagNoInput        = "almost no input"
	FlagLowRT          = "reaction time implausibly low"
	FlagLowMedianRT    = "median reaction time implausibly low"
	FlagPerfectLowHits = "suspiciously perfect with low sample"
	FlagTapSpam        = "frequent empty shots (tap-spam suspicion)"

	afkFraction   = 0.35
	spamThreshold = 6
)

// AnomalyContext carries the in-session counters the rules read.
type AnomalyContext struct {
	PlannedSec      float64
	WeirdShootCount int
}

// IsAFK reports a session that ended well short of its time budget.
// A zero played time is treated as "not reported" rather than AFK.
func IsAFK(playedSec, plannedSec float64) bool {
	if plannedSec <= 0 {
		plannedSec = DefaultTimeBudgetSec
	}
	return playedSec > 0 && playedSec < afkFraction*plannedSec
}

// DetectAnomalies runs every rule independently and returns all that match.
// Flags are advisory only.
func DetectAnomalies(p SessionEndPayload, ctx AnomalyContext) []string {
	p = p.Sanitized()
	hits := p.MeaningfulHits()
	flags := []string{}

	if IsAFK(p.DurationPlayedSec, ctx.PlannedSec) {
		flags = append(flags, FlagAFK)
	}
	if hits <= 2 && p.DurationPlayedSec > 10 {
		flags = append(flags, FlagNoInput)
	}
	if p.AvgRtGoodMs > 0 && p.AvgRtGoodMs < 90 {
		flags = append(flags, FlagLowRT)
	}
	if p.MedianRtGoodMs > 0 && p.MedianRtGoodMs < 80 {
		flags = append(flags, FlagLowMedianRT)
	}
	if p.AccuracyGoodPct >= 98 && hits < 8 {
		flags = append(flags, FlagPerfectLowHits)
	}
	if ctx.WeirdShootCount >= spamThreshold {
		flags = append(flags, FlagTapSpam)
	}
	return flags
}

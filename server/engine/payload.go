package engine

// SessionEndPayload is what the host game sends once at the end of a session.
// Every field is optional; missing numbers read as zero.
type SessionEndPayload struct {
	AccuracyGoodPct   float64 `json:"accuracyGoodPct"`
	Misses            float64 `json:"misses"`
	ComboMax          float64 `json:"comboMax"`
	AvgRtGoodMs       float64 `json:"avgRtGoodMs"`
	MedianRtGoodMs    float64 `json:"medianRtGoodMs,omitempty"`
	JunkErrorPct      float64 `json:"junkErrorPct,omitempty"`
	DurationPlayedSec float64 `json:"durationPlayedSec"`
	Grade             string  `json:"grade,omitempty"`

	// Older hosts send "accuracy" instead of accuracyGoodPct.
	Accuracy float64 `json:"accuracy,omitempty"`

	NHitGood  float64 `json:"nHitGood,omitempty"`
	NHitJunk  float64 `json:"nHitJunk,omitempty"`
	NHitWrong float64 `json:"nHitWrong,omitempty"`
	NHitDecoy float64 `json:"nHitDecoy,omitempty"`
	NHitBoss  float64 `json:"nHitBoss,omitempty"`
}

// Sanitized returns a copy with non-finite or negative numbers zeroed and the
// accuracy alias folded in.
func (p SessionEndPayload) Sanitized() SessionEndPayload {
	for _, f := range []*float64{
		&p.AccuracyGoodPct, &p.Misses, &p.ComboMax, &p.AvgRtGoodMs, &p.MedianRtGoodMs,
		&p.JunkErrorPct, &p.DurationPlayedSec, &p.Accuracy,
		&p.NHitGood, &p.NHitJunk, &p.NHitWrong, &p.NHitDecoy, &p.NHitBoss,
	} {
		if !finite(*f) || *f < 0 {
			*f = 0
		}
	}
	if p.AccuracyGoodPct == 0 && p.Accuracy > 0 {
		p.AccuracyGoodPct = p.Accuracy
	}
	p.Accuracy = 0
	return p
}

// MeaningfulHits is every registered hit, good or bad.
func (p SessionEndPayload) MeaningfulHits() float64 {
	return p.NHitGood + p.NHitJunk + p.NHitWrong + p.NHitDecoy + p.NHitBoss
}

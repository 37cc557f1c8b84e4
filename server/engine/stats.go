package engine

import (
	"sort"
	"strings"
)

// Judge kinds the host reports per shot.
const (
	JudgeGood  = "GOOD"
	JudgeJunk  = "JUNK"
	JudgeWrong = "WRONG"
	JudgeDecoy = "DECOY"
	JudgeBoss  = "BOSS"
	JudgeMiss  = "MISS"

	maxRtSamples = 512
)

// SessionTally counts judged shots during one session.
type SessionTally struct {
	Good  int
	Junk  int
	Wrong int
	Decoy int
	Boss  int
	Miss  int

	rt []float64
}

// Record counts one judge signal. Reaction times are kept for good hits only.
func (s *SessionTally) Record(kind string, rtMs float64) {
	switch strings.ToUpper(strings.TrimSpace(kind)) {
	case JudgeGood:
		s.Good++
		if finite(rtMs) && rtMs > 0 && len(s.rt) < maxRtSamples {
			s.rt = append(s.rt, rtMs)
		}
	case JudgeJunk:
		s.Junk++
	case JudgeWrong:
		s.Wrong++
	case JudgeDecoy:
		s.Decoy++
	case JudgeBoss:
		s.Boss++
	case JudgeMiss:
		s.Miss++
	}
}

func (s *SessionTally) Hits() int { return s.Good + s.Junk + s.Wrong + s.Decoy + s.Boss }

func (s *SessionTally) MedianRt() float64 { return Median(s.rt) }

// Fill copies tallied values into p where the host left them empty.
func (s *SessionTally) Fill(p SessionEndPayload) SessionEndPayload {
	if p.MeaningfulHits() == 0 && s.Hits() > 0 {
		p.NHitGood = float64(s.Good)
		p.NHitJunk = float64(s.Junk)
		p.NHitWrong = float64(s.Wrong)
		p.NHitDecoy = float64(s.Decoy)
		p.NHitBoss = float64(s.Boss)
	}
	if p.MedianRtGoodMs == 0 {
		p.MedianRtGoodMs = s.MedianRt()
	}
	return p
}

// Median of vals; 0 for an empty slice. vals is not modified.
func Median(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	c := make([]float64, n)
	copy(c, vals)
	sort.Float64s(c)
	if n%2 == 1 {
		return c[n/2]
	}
	return (c[n/2-1] + c[n/2]) / 2
}

package engine

import "strings"

type RunMode string

const (
	RunPlay     RunMode = "play"
	RunResearch RunMode = "research"
)

// ParseRunMode maps anything other than "research" to play.
func ParseRunMode(s string) RunMode {
	if strings.EqualFold(strings.TrimSpace(s), string(RunResearch)) {
		return RunResearch
	}
	return RunPlay
}

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Normal Difficulty = "normal"
	Hard   Difficulty = "hard"
)

// ParseDifficulty falls back to normal for unknown or empty input.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case Easy:
		return Easy
	case Hard:
		return Hard
	default:
		return Normal
	}
}

type Grade string

const (
	GradeSSS Grade = "SSS"
	GradeSS  Grade = "SS"
	GradeS   Grade = "S"
	GradeA   Grade = "A"
	GradeB   Grade = "B"
	GradeC   Grade = "C"
	GradeD   Grade = "D"
)

func ParseGrade(s string) (Grade, bool) {
	switch g := Grade(strings.ToUpper(strings.TrimSpace(s))); g {
	case GradeSSS, GradeSS, GradeS, GradeA, GradeB, GradeC, GradeD:
		return g, true
	}
	return GradeC, false
}

type Mood string

const (
	MoodNeutral Mood = "neutral"
	MoodHappy   Mood = "happy"
	MoodSad     Mood = "sad"
	MoodFever   Mood = "fever"
)

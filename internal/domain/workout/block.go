// Package workout provides the workout domain entities for interval exercises.
package workout

// Block represents one finished run through all configured rounds of an interval exercise.
type Block struct {
	TotalTime  int `yaml:"total_time"` // Work and rest seconds (countdown excluded)
	Difficulty int `yaml:"difficulty"` // 0 (unrated) to 5
}

// Difficulty scale bounds.
const (
	DifficultyNone     = 0
	DifficultyVeryEasy = 1
	DifficultyEasy     = 2
	DifficultyModerate = 3
	DifficultyHard     = 4
	DifficultyVeryHard = 5
)

var difficultyLabels = [...]string{
	DifficultyNone:     "None",
	DifficultyVeryEasy: "Very Easy",
	DifficultyEasy:     "Easy",
	DifficultyModerate: "Moderate",
	DifficultyHard:     "Hard",
	DifficultyVeryHard: "Very Hard",
}

// ValidDifficulty reports whether d is on the 0-5 scale.
func ValidDifficulty(d int) bool {
	return d >= DifficultyNone && d <= DifficultyVeryHard
}

// DifficultyLabel returns the label of a difficulty rating.
func DifficultyLabel(d int) string {
	if !ValidDifficulty(d) {
		return "unknown"
	}
	return difficultyLabels[d]
}

// AverageLabel returns the bucket label for an average difficulty.
// Zero means nothing was rated.
func AverageLabel(avg float64) string {
	switch {
	case avg == 0:
		return "N/A"
	case avg <= 1.5:
		return "Very Easy"
	case avg <= 2.5:
		return "Easy"
	case avg <= 3.5:
		return "Moderate"
	case avg <= 4.5:
		return "Hard"
	default:
		return "Very Hard"
	}
}

// PlannedDuration returns the seconds of one block: work every round, rest between rounds.
func PlannedDuration(workDuration, restDuration, rounds int) int {
	if rounds <= 0 {
		return 0
	}
	return workDuration*rounds + restDuration*(rounds-1)
}

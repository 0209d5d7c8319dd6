package workout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidDifficulty(t *testing.T) {
	tests := []struct {
		value    int
		expected bool
	}{
		{value: -1, expected: false},
		{value: 0, expected: true},
		{value: 3, expected: true},
		{value: 5, expected: true},
		{value: 6, expected: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ValidDifficulty(tt.value), "difficulty %d", tt.value)
	}
}

func TestDifficultyLabel(t *testing.T) {
	assert.Equal(t, "None", DifficultyLabel(0))
	assert.Equal(t, "Hard", DifficultyLabel(4))
	assert.Equal(t, "unknown", DifficultyLabel(9))
}

func TestAverageLabel(t *testing.T) {
	tests := []struct {
		name     string
		avg      float64
		expected string
	}{
		{name: "nothing rated", avg: 0, expected: "N/A"},
		{name: "very easy boundary", avg: 1.5, expected: "Very Easy"},
		{name: "easy", avg: 2.1, expected: "Easy"},
		{name: "moderate boundary", avg: 3.5, expected: "Moderate"},
		{name: "hard", avg: 4.2, expected: "Hard"},
		{name: "very hard", avg: 4.8, expected: "Very Hard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AverageLabel(tt.avg))
		})
	}
}

func TestPlannedDuration(t *testing.T) {
	assert.Equal(t, 110, PlannedDuration(30, 10, 3))
	assert.Equal(t, 20, PlannedDuration(20, 15, 1), "single round has no rest")
	assert.Equal(t, 90, PlannedDuration(30, 0, 3))
	assert.Equal(t, 0, PlannedDuration(30, 10, 0))
}

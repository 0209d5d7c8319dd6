package workout

import "time"

// Exercise describes an interval exercise slot inside a workout.
type Exercise struct {
	ID           string // Slot UUID
	MovementID   string // Movement name or catalog ID
	WorkDuration int    // Seconds of work per round
	RestDuration int    // Seconds of rest between rounds
	Rounds       int    // Work rounds per block
}

// IntervalEntry is the exercise entry produced when an interval exercise is finalized.
type IntervalEntry struct {
	ExerciseID   string  `yaml:"exercise_id"`
	MovementID   string  `yaml:"movement_id"`
	Type         string  `yaml:"type"`
	WorkDuration int     `yaml:"work_duration"`
	RestDuration int     `yaml:"rest_duration"`
	Rounds       int     `yaml:"rounds"`
	Blocks       []Block `yaml:"blocks"`
	IsComplete   bool    `yaml:"is_complete"`
}

// EntryTypeInterval tags entries written for timed interval exercises.
const EntryTypeInterval = "interval"

// Finalize folds an interval timer's block history into an exercise entry.
//
// completed holds the blocks recorded via "go again". current is the block the
// timer just finished but has not recorded yet (nil when the timer is not sitting
// in its complete phase); an unfinished block never reaches the entry.
func Finalize(ex Exercise, completed []Block, current *Block) IntervalEntry {
	blocks := make([]Block, 0, len(completed)+1)
	blocks = append(blocks, completed...)
	if current != nil {
		blocks = append(blocks, *current)
	}

	return IntervalEntry{
		ExerciseID:   ex.ID,
		MovementID:   ex.MovementID,
		Type:         EntryTypeInterval,
		WorkDuration: ex.WorkDuration,
		RestDuration: ex.RestDuration,
		Rounds:       ex.Rounds,
		Blocks:       blocks,
		IsComplete:   len(blocks) > 0,
	}
}

// TotalTime returns the summed block time in seconds.
func (e IntervalEntry) TotalTime() int {
	total := 0
	for _, b := range e.Blocks {
		total += b.TotalTime
	}
	return total
}

// PlannedDuration returns the configured length of one block in seconds.
func (e IntervalEntry) PlannedDuration() int {
	return PlannedDuration(e.WorkDuration, e.RestDuration, e.Rounds)
}

// Record aggregates the interval entries of one workout.
type Record struct {
	ID        string          `yaml:"id"`
	StartedAt time.Time       `yaml:"started_at"`
	EndedAt   time.Time       `yaml:"ended_at"`
	Exercises []IntervalEntry `yaml:"exercises"`
}

// Add appends an entry to the record.
func (r *Record) Add(entry IntervalEntry) {
	r.Exercises = append(r.Exercises, entry)
}

// HasData reports whether any exercise in the record was completed.
func (r *Record) HasData() bool {
	for _, e := range r.Exercises {
		if e.IsComplete {
			return true
		}
	}
	return false
}

// BlockCount returns the number of blocks across all exercises.
func (r *Record) BlockCount() int {
	count := 0
	for _, e := range r.Exercises {
		count += len(e.Blocks)
	}
	return count
}

// AverageDifficulty averages every rated block. Unrated blocks are ignored.
func (r *Record) AverageDifficulty() float64 {
	total, rated := 0, 0
	for _, e := range r.Exercises {
		for _, b := range e.Blocks {
			if b.Difficulty > 0 {
				total += b.Difficulty
				rated++
			}
		}
	}
	if rated == 0 {
		return 0
	}
	return float64(total) / float64(rated)
}

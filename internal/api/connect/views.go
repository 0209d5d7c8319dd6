package connect

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/hiitbox/internal/app/interval"
	"github.com/osa030/hiitbox/internal/app/notification"
	"github.com/osa030/hiitbox/internal/app/session"
	"github.com/osa030/hiitbox/internal/domain/workout"
)

// Request messages.

// AddExerciseRequest is the AddExercise request. Nil durations use server defaults.
type AddExerciseRequest struct {
	Movement     string `mapstructure:"movement"`
	WorkDuration *int   `mapstructure:"work_duration"`
	RestDuration *int   `mapstructure:"rest_duration"`
	Rounds       *int   `mapstructure:"rounds"`
}

// ExerciseRequest addresses one exercise.
type ExerciseRequest struct {
	ExerciseID string `mapstructure:"exercise_id"`
}

// RateBlockRequest is the RateBlock request.
type RateBlockRequest struct {
	ExerciseID string `mapstructure:"exercise_id"`
	Index      int    `mapstructure:"index"`
	Difficulty int    `mapstructure:"difficulty"`
}

// SubscribeRequest is the Subscribe request. An empty ExerciseID subscribes to all.
type SubscribeRequest struct {
	ExerciseID string `mapstructure:"exercise_id"`
}

// Response messages.

// BlockView is a completed block.
type BlockView struct {
	TotalTime  int `mapstructure:"total_time"`
	Difficulty int `mapstructure:"difficulty"`
}

// SnapshotView is the engine state.
type SnapshotView struct {
	Phase             string      `mapstructure:"phase"`
	PausedFrom        string      `mapstructure:"paused_from"`
	CurrentRound      int         `mapstructure:"current_round"`
	Rounds            int         `mapstructure:"rounds"`
	TimeRemaining     int         `mapstructure:"time_remaining"`
	TotalElapsed      int         `mapstructure:"total_elapsed"`
	CompletedBlocks   []BlockView `mapstructure:"completed_blocks"`
	PendingDifficulty int         `mapstructure:"pending_difficulty"`
}

// EntryView is a finalized exercise entry.
type EntryView struct {
	ExerciseID   string      `mapstructure:"exercise_id"`
	Movement     string      `mapstructure:"movement"`
	Type         string      `mapstructure:"type"`
	WorkDuration int         `mapstructure:"work_duration"`
	RestDuration int         `mapstructure:"rest_duration"`
	Rounds       int         `mapstructure:"rounds"`
	Blocks       []BlockView `mapstructure:"blocks"`
	IsComplete   bool        `mapstructure:"is_complete"`
	TotalTime    int         `mapstructure:"total_time"`
}

// ExerciseView is an exercise slot and its engine state.
type ExerciseView struct {
	ID           string       `mapstructure:"id"`
	Movement     string       `mapstructure:"movement"`
	WorkDuration int          `mapstructure:"work_duration"`
	RestDuration int          `mapstructure:"rest_duration"`
	Rounds       int          `mapstructure:"rounds"`
	Finished     bool         `mapstructure:"finished"`
	Snapshot     SnapshotView `mapstructure:"snapshot"`
	Entry        *EntryView   `mapstructure:"entry"`
}

// CommandResult is the response of an engine command.
type CommandResult struct {
	Applied  bool         `mapstructure:"applied"`
	Snapshot SnapshotView `mapstructure:"snapshot"`
}

// RecordView is the finished workout record.
type RecordView struct {
	ID                string      `mapstructure:"id"`
	StartedAt         string      `mapstructure:"started_at"`
	EndedAt           string      `mapstructure:"ended_at"`
	Exercises         []EntryView `mapstructure:"exercises"`
	BlockCount        int         `mapstructure:"block_count"`
	AverageDifficulty float64     `mapstructure:"average_difficulty"`
	AverageLabel      string      `mapstructure:"average_label"`
}

// NotificationView is a streamed timer notification.
type NotificationView struct {
	Type       string        `mapstructure:"type"`
	SequenceNo uint64        `mapstructure:"sequence_no"`
	ExerciseID string        `mapstructure:"exercise_id"`
	Movement   string        `mapstructure:"movement"`
	Snapshot   *SnapshotView `mapstructure:"snapshot"`
	Entry      *EntryView    `mapstructure:"entry"`
	At         string        `mapstructure:"at"`
}

// NotificationTypeInitialState marks the per-exercise state sent when a stream opens.
const NotificationTypeInitialState = "initial_state"

// decodeMessage decodes a struct message into out.
func decodeMessage(msg *structpb.Struct, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	var m map[string]any
	if msg != nil {
		m = msg.AsMap()
	}
	if err := decoder.Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode message")
	}
	return nil
}

// encodeMessage converts a map built by the *Map helpers into a struct message.
func encodeMessage(m map[string]any) (*structpb.Struct, error) {
	msg, err := structpb.NewStruct(m)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode message")
	}
	return msg, nil
}

func blocksList(blocks []workout.Block) []any {
	list := make([]any, 0, len(blocks))
	for _, b := range blocks {
		list = append(list, map[string]any{
			"total_time": b.TotalTime,
			"difficulty": b.Difficulty,
		})
	}
	return list
}

func snapshotMap(s interval.Snapshot) map[string]any {
	return map[string]any{
		"phase":              s.Phase.String(),
		"paused_from":        s.PausedFrom.String(),
		"current_round":      s.CurrentRound,
		"rounds":             s.Rounds,
		"time_remaining":     s.TimeRemaining,
		"total_elapsed":      s.TotalElapsed,
		"completed_blocks":   blocksList(s.CompletedBlocks),
		"pending_difficulty": s.PendingDifficulty,
	}
}

func entryMap(e workout.IntervalEntry) map[string]any {
	return map[string]any{
		"exercise_id":   e.ExerciseID,
		"movement":      e.MovementID,
		"type":          e.Type,
		"work_duration": e.WorkDuration,
		"rest_duration": e.RestDuration,
		"rounds":        e.Rounds,
		"blocks":        blocksList(e.Blocks),
		"is_complete":   e.IsComplete,
		"total_time":    e.TotalTime(),
	}
}

func exerciseMap(info session.ExerciseInfo) map[string]any {
	m := map[string]any{
		"id":            info.Exercise.ID,
		"movement":      info.Exercise.MovementID,
		"work_duration": info.Exercise.WorkDuration,
		"rest_duration": info.Exercise.RestDuration,
		"rounds":        info.Exercise.Rounds,
		"finished":      info.Finished,
		"snapshot":      snapshotMap(info.Snapshot),
	}
	if info.Entry != nil {
		m["entry"] = entryMap(*info.Entry)
	}
	return m
}

func recordMap(r workout.Record) map[string]any {
	exercises := make([]any, 0, len(r.Exercises))
	for _, e := range r.Exercises {
		exercises = append(exercises, entryMap(e))
	}
	avg := r.AverageDifficulty()
	return map[string]any{
		"id":                 r.ID,
		"started_at":         r.StartedAt.Format(time.RFC3339),
		"ended_at":           r.EndedAt.Format(time.RFC3339),
		"exercises":          exercises,
		"block_count":        r.BlockCount(),
		"average_difficulty": avg,
		"average_label":      workout.AverageLabel(avg),
	}
}

func notificationMap(n *notification.Notification) map[string]any {
	m := map[string]any{
		"type":        string(n.Type),
		"sequence_no": n.SequenceNo,
		"exercise_id": n.ExerciseID,
		"movement":    n.Movement,
		"at":          n.At.Format(time.RFC3339Nano),
	}
	if n.ExerciseID != "" && n.Entry == nil {
		m["snapshot"] = snapshotMap(n.Snapshot)
	}
	if n.Entry != nil {
		m["entry"] = entryMap(*n.Entry)
	}
	return m
}

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/hiitbox/internal/app/interval"
	"github.com/osa030/hiitbox/internal/app/notification"
	"github.com/osa030/hiitbox/internal/app/session/state"
	"github.com/osa030/hiitbox/internal/app/wakehold"
	"github.com/osa030/hiitbox/internal/domain/workout"
)

type recordingStream struct {
	mu  sync.Mutex
	got []*notification.Notification
}

func (s *recordingStream) Send(n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return nil
}

func (s *recordingStream) types() []notification.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]notification.Type, 0, len(s.got))
	for _, n := range s.got {
		types = append(types, n.Type)
	}
	return types
}

type fakeLock struct {
	lost chan struct{}
}

func (l *fakeLock) Release() error        { return nil }
func (l *fakeLock) Lost() <-chan struct{} { return l.lost }

type fakeBackend struct{}

func (fakeBackend) Acquire(context.Context) (wakehold.Lock, error) {
	return &fakeLock{lost: make(chan struct{})}, nil
}

func intPtr(v int) *int { return &v }

func newManager(t *testing.T, hold *wakehold.Hold) *Manager {
	t.Helper()
	m := NewManager(Config{
		Defaults:    interval.Config{WorkDuration: 2, RestDuration: 1, Rounds: 2},
		ManualClock: true,
	}, nil, hold)
	t.Cleanup(m.Close)
	return m
}

func engineOf(t *testing.T, m *Manager, id string) *interval.Engine {
	t.Helper()
	slot, err := m.exerciseReg.Get(id)
	require.NoError(t, err)
	return slot.Engine
}

func TestManager_AddExercise(t *testing.T) {
	m := newManager(t, nil)

	tests := []struct {
		name    string
		req     ExerciseRequest
		want    interval.Config
		wantErr bool
	}{
		{
			name: "Defaults",
			req:  ExerciseRequest{MovementID: "burpee"},
			want: interval.Config{WorkDuration: 2, RestDuration: 1, Rounds: 2},
		},
		{
			name: "Explicit zero rest",
			req:  ExerciseRequest{MovementID: "squat", WorkDuration: intPtr(40), RestDuration: intPtr(0), Rounds: intPtr(5)},
			want: interval.Config{WorkDuration: 40, RestDuration: 0, Rounds: 5},
		},
		{
			name:    "Missing movement",
			req:     ExerciseRequest{},
			wantErr: true,
		},
		{
			name:    "Invalid rounds",
			req:     ExerciseRequest{MovementID: "row", Rounds: intPtr(0)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := m.AddExercise(tt.req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, info.Exercise.ID)
			assert.Equal(t, tt.req.MovementID, info.Exercise.MovementID)
			assert.Equal(t, tt.want, engineOf(t, m, info.Exercise.ID).Config())
			assert.Equal(t, interval.PhaseIdle, info.Snapshot.Phase)
		})
	}

	assert.Len(t, m.ListExercises(), 2)
}

func TestManager_CommandsByID(t *testing.T) {
	m := newManager(t, nil)
	info, err := m.AddExercise(ExerciseRequest{MovementID: "burpee"})
	require.NoError(t, err)
	id := info.Exercise.ID

	ok, err := m.Start(id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Start(id)
	require.NoError(t, err)
	assert.False(t, ok, "start while running is a no-op")

	ok, err = m.Pause(id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Resume(id)
	require.NoError(t, err)
	assert.True(t, ok)

	engine := engineOf(t, m, id)
	for engine.Tick() {
	}

	ok, err = m.RateBlock(id, 0, workout.DifficultyModerate)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.GoAgain(id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Reset(id)
	require.NoError(t, err)
	assert.False(t, ok, "already idle")

	snap, err := m.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, []workout.Block{{TotalTime: 5, Difficulty: workout.DifficultyModerate}}, snap.Snapshot.CompletedBlocks)

	for _, cmd := range []func(string) (bool, error){m.Start, m.Pause, m.Resume, m.Reset, m.GoAgain} {
		_, err := cmd("missing")
		assert.True(t, errors.Is(err, ErrUnknownExercise))
	}
	_, err = m.RateBlock("missing", 0, 1)
	assert.True(t, errors.Is(err, ErrUnknownExercise))
	_, err = m.Snapshot("missing")
	assert.True(t, errors.Is(err, ErrUnknownExercise))
}

func TestManager_FinishExercise(t *testing.T) {
	m := newManager(t, nil)
	info, err := m.AddExercise(ExerciseRequest{MovementID: "burpee"})
	require.NoError(t, err)
	id := info.Exercise.ID

	_, _ = m.Start(id)
	engine := engineOf(t, m, id)
	for engine.Tick() {
	}
	_, _ = m.RateBlock(id, 0, workout.DifficultyHard)

	entry, err := m.FinishExercise(id)
	require.NoError(t, err)
	assert.Equal(t, []workout.Block{{TotalTime: 5, Difficulty: workout.DifficultyHard}}, entry.Blocks)
	assert.True(t, entry.IsComplete)

	_, err = m.Start(id)
	assert.True(t, errors.Is(err, ErrExerciseFinished))
	_, err = m.FinishExercise(id)
	assert.True(t, errors.Is(err, ErrExerciseFinished))

	snap, err := m.Snapshot(id)
	require.NoError(t, err)
	assert.True(t, snap.Finished)
	require.NotNil(t, snap.Entry)

	record := m.Record()
	require.Len(t, record.Exercises, 1)
	assert.Equal(t, entry, record.Exercises[0])
}

func TestManager_FinishWorkout(t *testing.T) {
	m := newManager(t, nil)
	a, err := m.AddExercise(ExerciseRequest{MovementID: "burpee"})
	require.NoError(t, err)
	b, err := m.AddExercise(ExerciseRequest{MovementID: "squat"})
	require.NoError(t, err)

	_, _ = m.Start(a.Exercise.ID)
	engine := engineOf(t, m, a.Exercise.ID)
	for engine.Tick() {
	}
	_, err = m.FinishExercise(a.Exercise.ID)
	require.NoError(t, err)

	_, _ = m.Start(b.Exercise.ID)

	record, err := m.FinishWorkout()
	require.NoError(t, err)
	require.Len(t, record.Exercises, 2)
	assert.True(t, record.Exercises[0].IsComplete)
	assert.False(t, record.Exercises[1].IsComplete, "block in progress is discarded")
	assert.True(t, record.HasData())
	assert.False(t, record.EndedAt.IsZero())

	select {
	case <-m.Done():
	default:
		t.Fatal("done channel not closed")
	}

	assert.Equal(t, state.PhaseFinished, m.Info().Phase)

	_, err = m.FinishWorkout()
	assert.True(t, errors.Is(err, ErrWorkoutFinished))
	_, err = m.AddExercise(ExerciseRequest{MovementID: "row"})
	assert.True(t, errors.Is(err, ErrWorkoutFinished))
	_, err = m.Start(b.Exercise.ID)
	assert.True(t, errors.Is(err, ErrWorkoutFinished))
	_, err = m.FinishExercise(b.Exercise.ID)
	assert.True(t, errors.Is(err, ErrWorkoutFinished))
}

func TestManager_Notifications(t *testing.T) {
	m := newManager(t, nil)
	stream := &recordingStream{}
	m.GetNotificationManager().Subscribe(stream, "")

	info, err := m.AddExercise(ExerciseRequest{MovementID: "burpee"})
	require.NoError(t, err)
	_, _ = m.Start(info.Exercise.ID)

	require.Eventually(t, func() bool {
		types := stream.types()
		return len(types) == 2 && types[1] == notification.TypeStateChanged
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, notification.TypeExerciseAdded, stream.types()[0])

	_, err = m.FinishExercise(info.Exercise.ID)
	require.NoError(t, err)
	_, err = m.FinishWorkout()
	require.NoError(t, err)

	types := stream.types()
	assert.Contains(t, types, notification.TypeExerciseFinished)
	assert.Equal(t, notification.TypeWorkoutFinished, types[len(types)-1])
}

func TestManager_SharedWakeHold(t *testing.T) {
	hold := wakehold.New(fakeBackend{}, wakehold.Config{RetryDelay: time.Millisecond})
	defer hold.Close()
	m := newManager(t, hold)

	a, err := m.AddExercise(ExerciseRequest{MovementID: "burpee"})
	require.NoError(t, err)
	b, err := m.AddExercise(ExerciseRequest{MovementID: "squat"})
	require.NoError(t, err)

	for _, id := range []string{a.Exercise.ID, b.Exercise.ID} {
		_, _ = m.Start(id)
		engine := engineOf(t, m, id)
		for i := 0; i < interval.CountdownSeconds; i++ {
			engine.Tick()
		}
	}
	require.Eventually(t, hold.Held, time.Second, time.Millisecond)

	_, _ = m.Pause(a.Exercise.ID)
	assert.True(t, hold.Wanted(), "second exercise still running")

	_, err = m.FinishExercise(b.Exercise.ID)
	require.NoError(t, err)
	assert.False(t, hold.Wanted())
	require.Eventually(t, func() bool { return !hold.Held() }, time.Second, time.Millisecond)
}

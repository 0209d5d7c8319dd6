package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Lifecycle(t *testing.T) {
	started := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	m := New("w-1", started)

	assert.Equal(t, "w-1", m.GetWorkoutID())
	assert.Equal(t, PhaseActive, m.GetPhase())
	assert.True(t, m.IsActive())

	info := m.Info()
	assert.Equal(t, started, info.StartedAt)
	assert.Nil(t, info.EndedAt)

	ended := started.Add(45 * time.Minute)
	require.True(t, m.Finish(ended))
	assert.False(t, m.Finish(ended.Add(time.Minute)), "finishing twice is a no-op")

	assert.Equal(t, PhaseFinished, m.GetPhase())
	assert.False(t, m.IsActive())
	s, e := m.GetTimes()
	assert.Equal(t, started, s)
	require.NotNil(t, e)
	assert.Equal(t, ended, *e)

	info = m.Info()
	require.NotNil(t, info.EndedAt)
	assert.Equal(t, ended, *info.EndedAt)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "active", PhaseActive.String())
	assert.Equal(t, "finished", PhaseFinished.String())
	assert.Equal(t, "unknown", Phase(9).String())
}

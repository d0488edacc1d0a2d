package telemetry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/guidecane/internal/perception"
	"github.com/banshee-data/guidecane/internal/pipeline"
	"github.com/banshee-data/guidecane/internal/steering"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(seq uint64, at time.Time, cmd float64, mode steering.Mode) pipeline.Record {
	return pipeline.Record{
		Seq:     seq,
		Decided: at,
		Latency: 12 * time.Millisecond,
		Decision: steering.Decision{
			Command:    cmd,
			Confidence: 0.5,
			Mode:       mode,
			Rationale:  "test",
			Closest:    1.2,
			HasClosest: true,
			Proximity:  0.4,
			Zones: perception.ObstacleZones{
				Center:      perception.Zone{Nearest: 1.2, Average: 1.5, Count: 10},
				Right:       perception.Zone{Nearest: 2.0, Average: 2.5, Count: 4},
				LateralBias: 0.25,
			},
		},
		Profile: perception.ProfileStats{Kept: 40, Floor: 12},
	}
}

func TestOpenAppliesMigrations(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.False(t, dirty)

	// Reopening an up-to-date database is a no-op.
	require.NoError(t, s.MigrateUp())
}

func TestSessionsLifecycle(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	id, err := s.StartSession("corridor", "continuous", map[string]float64{"sensing_distance_m": 2}, start)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	later, err := s.StartSession("", "discrete", nil, start.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.EndSession(id, start.Add(time.Minute)))
	assert.Error(t, s.EndSession("missing", start))

	sessions, err := s.Sessions(0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, later, sessions[0].ID, "most recent first")
	assert.Nil(t, sessions[0].Ended)
	assert.JSONEq(t, `{}`, string(sessions[0].Tuning))

	assert.Equal(t, "corridor", sessions[1].Label)
	assert.Equal(t, "continuous", sessions[1].Protocol)
	assert.True(t, sessions[1].Started.Equal(start))
	require.NotNil(t, sessions[1].Ended)
	assert.True(t, sessions[1].Ended.Equal(start.Add(time.Minute)))
	assert.JSONEq(t, `{"sensing_distance_m":2}`, string(sessions[1].Tuning))
}

func TestInsertAndQueryDecisions(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	id, err := s.StartSession("run", "continuous", nil, start)
	require.NoError(t, err)

	recs := []pipeline.Record{
		testRecord(1, start.Add(1*time.Second), 0.1, steering.ModeSteer),
		testRecord(2, start.Add(2*time.Second), -1, steering.ModeCritical),
		testRecord(3, start.Add(3*time.Second), 0, steering.ModeClear),
	}
	recs[2].Decision.HasClosest = false
	recs[2].Decision.NavBias = -0.3
	recs[2].Decision.HasNavBias = true
	require.NoError(t, s.InsertDecisions(id, recs))
	require.NoError(t, s.InsertDecisions(id, nil))

	rows, err := s.Decisions(id, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	first := rows[0]
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, "steer", first.Mode)
	assert.Equal(t, 0.1, first.Command)
	assert.Equal(t, 12*time.Millisecond, first.Latency)
	require.NotNil(t, first.Closest)
	assert.Equal(t, 1.2, *first.Closest)
	assert.Nil(t, first.LeftNearest, "absent zone stored as NULL")
	require.NotNil(t, first.CenterNearest)
	assert.Equal(t, 1.2, *first.CenterNearest)
	assert.Equal(t, 0.25, first.LateralBias)
	assert.Equal(t, 40, first.SamplesKept)
	assert.Equal(t, 12, first.SamplesFloor)
	assert.Nil(t, first.NavBias)

	assert.Equal(t, "critical", rows[1].Mode)
	assert.Nil(t, rows[2].Closest)
	require.NotNil(t, rows[2].NavBias)
	assert.Equal(t, -0.3, *rows[2].NavBias)

	latest, err := s.Decisions(id, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, uint64(2), latest[0].Seq, "most recent window, oldest first")
	assert.Equal(t, uint64(3), latest[1].Seq)

	other, err := s.Decisions("other", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestLinkEvents(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	id, err := s.StartSession("run", "continuous", nil, start)
	require.NoError(t, err)

	require.NoError(t, s.RecordLinkEvent(id, start.Add(2*time.Second), "down", "link: down"))
	require.NoError(t, s.RecordLinkEvent(id, start.Add(time.Second), "up", ""))

	events, err := s.LinkEvents(id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "up", events[0].Kind)
	assert.Equal(t, "down", events[1].Kind)
	assert.Equal(t, "link: down", events[1].Detail)
}

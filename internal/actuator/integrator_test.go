package actuator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeakyIntegratorSettles(t *testing.T) {
	t.Parallel()

	l := NewLeakyIntegrator(500*time.Millisecond, 1, 1)
	for i := 0; i < 300; i++ {
		l.Step(0.6, 20*time.Millisecond)
	}
	dir, mag := l.Drive()
	assert.Equal(t, 1, dir)
	assert.InDelta(t, 0.6, mag, 1e-3)

	for i := 0; i < 300; i++ {
		l.Step(-1, 20*time.Millisecond)
	}
	dir, mag = l.Drive()
	assert.Equal(t, -1, dir)
	assert.InDelta(t, 1.0, mag, 1e-3)
}

func TestLeakyIntegratorClampsDrive(t *testing.T) {
	t.Parallel()

	l := NewLeakyIntegrator(time.Second, 3, 0.8)
	l.Step(1, 10*time.Second)
	_, mag := l.Drive()
	assert.Equal(t, 0.8, mag)
}

func TestLeakyIntegratorSubdividesLongSteps(t *testing.T) {
	t.Parallel()

	// One long step must match many short ones, not overshoot.
	a := NewLeakyIntegrator(500*time.Millisecond, 1, 0)
	b := NewLeakyIntegrator(500*time.Millisecond, 1, 0)
	a.Step(1, 2*time.Second)
	for i := 0; i < 40; i++ {
		b.Step(1, 50*time.Millisecond)
	}
	assert.InDelta(t, b.State(), a.State(), 1e-12)
	assert.Less(t, a.State(), 0.5)
}

func TestLeakyIntegratorWatchdogDecay(t *testing.T) {
	t.Parallel()

	tau := 500 * time.Millisecond
	tick := 20 * time.Millisecond
	l := NewLeakyIntegrator(tau, 1, 1)
	for i := 0; i < 500; i++ {
		l.Step(1, tick)
	}
	_, start := l.Drive()
	require.Greater(t, start, 0.99)

	// Silence: zero input from here on.
	prev := start
	crossed := time.Duration(0)
	for elapsed := tick; elapsed <= 10*tau; elapsed += tick {
		l.Step(0, tick)
		dir, mag := l.Drive()
		require.Equal(t, 1, dir, "never a step to zero")
		require.Positive(t, mag)
		require.Less(t, mag, prev, "monotone decay")
		prev = mag
		if crossed == 0 && mag < 0.05*start {
			crossed = elapsed
		}
	}
	require.NotZero(t, crossed)
	assert.LessOrEqual(t, crossed, 4*tau)
	assert.GreaterOrEqual(t, crossed, 2*tau)

	l.Reset()
	dir, mag := l.Drive()
	assert.Zero(t, dir)
	assert.Zero(t, mag)
}

func TestLeakyIntegratorIgnoresDegenerateSteps(t *testing.T) {
	t.Parallel()

	l := NewLeakyIntegrator(0, 1, 1)
	l.Step(1, time.Second)
	assert.Zero(t, l.State())

	l = NewLeakyIntegrator(time.Second, 1, 1)
	l.Step(1, 0)
	l.Step(1, -time.Second)
	assert.Zero(t, l.State())
	assert.False(t, math.Signbit(l.State()))
}

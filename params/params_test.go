package params

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	assert.Equal(t, float32(0.75), d.DryWet)
	assert.Equal(t, float32(0.6), d.Amount)
	assert.Equal(t, float32(0.35), d.Glitch)
	assert.Equal(t, float32(0), d.Trail)
	assert.Equal(t, Tear, d.Mode)
}

func TestNewSnapshotClampsBoundedFields(t *testing.T) {
	nan := float32(math.NaN())
	inputs := []float32{-5, -0.001, 0, 0.3, 1, 1.0001, 42, nan, float32(math.Inf(1)), float32(math.Inf(-1))}

	for _, in := range inputs {
		v := Values{DryWet: in, Amount: in, Glitch: in, Trail: in, Mode: EffectMode(int(in))}
		s := NewSnapshot(v, in, -1, 0, -3)

		for name, f := range map[string]float32{
			"DryWet": s.DryWet, "Amount": s.Amount, "Glitch": s.Glitch,
			"Trail": s.Trail, "AudioLevel": s.AudioLevel,
		} {
			assert.GreaterOrEqual(t, f, float32(0), "%s for input %v", name, in)
			assert.LessOrEqual(t, f, float32(1), "%s for input %v", name, in)
		}
		assert.GreaterOrEqual(t, int(s.Mode), int(Tear))
		assert.LessOrEqual(t, int(s.Mode), int(Passthrough))
		assert.Equal(t, 0.0, s.Elapsed)
		assert.Equal(t, 1, s.ViewportWidth)
		assert.Equal(t, 1, s.ViewportHeight)
	}
}

func TestNewSnapshotKeepsInRangeValues(t *testing.T) {
	v := Values{DryWet: 0.1, Amount: 0.2, Glitch: 0.3, Trail: 0.4, Mode: Kaleidoscope}
	s := NewSnapshot(v, 0.5, 12.5, 640, 480)

	assert.Equal(t, Snapshot{
		DryWet: 0.1, Amount: 0.2, Glitch: 0.3, Trail: 0.4, AudioLevel: 0.5,
		Mode: Kaleidoscope, Elapsed: 12.5, ViewportWidth: 640, ViewportHeight: 480,
	}, s)
}

func TestParseEffectMode(t *testing.T) {
	cases := map[string]EffectMode{
		"tear": Tear, "0": Tear, " TEAR ": Tear,
		"kaleidoscope": Kaleidoscope, "1": Kaleidoscope,
		"passthrough": Passthrough, "2": Passthrough, "7": Passthrough, "-1": Tear,
	}
	for in, want := range cases {
		got, err := ParseEffectMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseEffectMode("wobble")
	assert.Error(t, err)
}

func TestEffectModeUniform(t *testing.T) {
	assert.Equal(t, float32(0), Tear.Uniform())
	assert.Equal(t, float32(1), Kaleidoscope.Uniform())
	assert.Equal(t, float32(2), Passthrough.Uniform())
	assert.Equal(t, float32(2), EffectMode(9).Uniform())
	assert.Equal(t, "kaleidoscope", Kaleidoscope.String())
}

func TestControlsClampOnSet(t *testing.T) {
	c := NewControls(Defaults())
	c.SetDryWet(3)
	c.SetAmount(-1)
	c.SetGlitch(float32(math.NaN()))
	c.SetTrail(0.5)
	c.SetMode(EffectMode(12))

	v := c.Values()
	assert.Equal(t, float32(1), v.DryWet)
	assert.Equal(t, float32(0), v.Amount)
	assert.Equal(t, float32(0), v.Glitch)
	assert.Equal(t, float32(0.5), v.Trail)
	assert.Equal(t, Passthrough, v.Mode)
}

func TestControlsNudge(t *testing.T) {
	c := NewControls(Defaults())
	v, err := c.Nudge(DryWet, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 0.85, v, 1e-6)

	v, _ = c.Nudge(DryWet, 5)
	assert.Equal(t, float32(1), v)
	v, _ = c.Nudge(Trail, -1)
	assert.Equal(t, float32(0), v)

	before := c.Values()
	_, err = c.Nudge(Control(9), 1)
	assert.EqualError(t, err, "unknown control Control(9)")
	assert.Equal(t, before, c.Values())
	assert.Equal(t, "glitch", Glitch.String())
}

func TestControlsConcurrentAccess(t *testing.T) {
	c := NewControls(Defaults())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.SetAmount(float32(j%10) / 10)
				c.Nudge(Glitch, 0.01)
				c.SetMode(EffectMode(j % NumModes))
				v := c.Values()
				assert.LessOrEqual(t, v.Glitch, float32(1))
			}
		}(i)
	}
	wg.Wait()
}

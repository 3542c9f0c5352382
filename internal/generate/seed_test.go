package generate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed_Wire(t *testing.T) {
	tests := []struct {
		wire   string
		want   Seed
		random bool
	}{
		{wire: "-1", want: RandomSeed(), random: true},
		{wire: "null", want: RandomSeed(), random: true},
		{wire: "0", want: ExplicitSeed(0)},
		{wire: "42", want: ExplicitSeed(42)},
		{wire: "2147483647", want: ExplicitSeed(2147483647)},
		{wire: "-7", want: ExplicitSeed(-7)},
	}
	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			var seed Seed
			require.NoError(t, json.Unmarshal([]byte(tt.wire), &seed))
			assert.Equal(t, tt.want, seed)
			assert.Equal(t, tt.random, seed.IsRandom())

			out, err := json.Marshal(seed)
			require.NoError(t, err)
			if tt.random {
				assert.Equal(t, "-1", string(out))
			} else {
				assert.Equal(t, tt.wire, string(out))
			}
		})
	}
}

func TestSeed_InvalidWire(t *testing.T) {
	for _, wire := range []string{`"42"`, `1.5`, `true`, `{}`, `1e30`} {
		var seed Seed
		assert.Error(t, json.Unmarshal([]byte(wire), &seed), wire)
	}
}

func TestSeed_ZeroValueIsRandom(t *testing.T) {
	var seed Seed
	assert.True(t, seed.IsRandom())
	assert.Equal(t, "random", seed.String())
	assert.Equal(t, RandomSentinel, seed.Wire())

	v, ok := ExplicitSeed(9).Value()
	assert.True(t, ok)
	assert.EqualValues(t, 9, v)
	assert.Equal(t, "9", ExplicitSeed(9).String())
}

func TestResolveSeed(t *testing.T) {
	t.Run("explicit is verbatim and never draws", func(t *testing.T) {
		got := ResolveSeed(ExplicitSeed(42), func() int64 {
			t.Fatal("draw called for an explicit seed")
			return 0
		})
		assert.EqualValues(t, 42, got)
	})

	t.Run("random draws once", func(t *testing.T) {
		calls := 0
		got := ResolveSeed(RandomSeed(), func() int64 {
			calls++
			return 1234
		})
		assert.EqualValues(t, 1234, got)
		assert.Equal(t, 1, calls)
	})
}

func TestDrawSeed_Range(t *testing.T) {
	seen := map[int64]struct{}{}
	for i := 0; i < 1000; i++ {
		seed := DrawSeed()
		require.GreaterOrEqual(t, seed, int64(0))
		require.Less(t, seed, SeedLimit)
		seen[seed] = struct{}{}
	}
	assert.Greater(t, len(seen), 990)
}

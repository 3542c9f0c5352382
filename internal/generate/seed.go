package generate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
)

const (
	// RandomSentinel is the wire value callers send to ask for a fresh seed.
	RandomSentinel int64 = -1
	// SeedLimit bounds drawn seeds: they fall in [0, SeedLimit).
	SeedLimit int64 = 2147483647
)

// Seed is either Random or Explicit(n). The zero value is Random.
type Seed struct {
	value    int64
	explicit bool
}

func RandomSeed() Seed {
	return Seed{}
}

func ExplicitSeed(v int64) Seed {
	return Seed{value: v, explicit: true}
}

// SeedFromWire maps the wire integer to a Seed; -1 is Random.
func SeedFromWire(v int64) Seed {
	if v == RandomSentinel {
		return RandomSeed()
	}
	return ExplicitSeed(v)
}

func (s Seed) IsRandom() bool {
	return !s.explicit
}

// Value returns the explicit seed, or false for Random.
func (s Seed) Value() (int64, bool) {
	return s.value, s.explicit
}

// Wire is the integer existing callers understand.
func (s Seed) Wire() int64 {
	if !s.explicit {
		return RandomSentinel
	}
	return s.value
}

func (s Seed) String() string {
	if !s.explicit {
		return "random"
	}
	return strconv.FormatInt(s.value, 10)
}

func (s Seed) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Wire())
}

func (s *Seed) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = RandomSeed()
		return nil
	}
	v, err := wholeNumber(data)
	if err != nil {
		return err
	}
	*s = SeedFromWire(v)
	return nil
}

var errFractional = errors.New("number has a fractional part")

// wholeNumber decodes a JSON integer. Floats are accepted when they have no
// fractional part, so 42.0 reads as 42.
func wholeNumber(data []byte) (int64, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '"' {
		return 0, fmt.Errorf("%s is a string", trimmed)
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return 0, err
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, errFractional
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%s overflows int64", n)
	}
	return int64(f), nil
}

// DrawSeed picks a seed uniformly from [0, SeedLimit).
func DrawSeed() int64 {
	return rand.Int64N(SeedLimit)
}

// ResolveSeed returns the seed that will actually be applied. draw is called
// at most once, and only for Random.
func ResolveSeed(s Seed, draw func() int64) int64 {
	if v, ok := s.Value(); ok {
		return v
	}
	return draw()
}

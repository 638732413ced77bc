// Package dice implements the skill-check dice rolls.
package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

const d20Sides = 20

// Roll is the outcome of a single d20 roll: the value and the narration line
// that gets appended to the transcript.
type Roll struct {
	Value int
	Text  string
}

// Roller produces uniformly distributed d20 rolls.
type Roller struct {
	rng *rand.Rand
}

// NewRoller returns a Roller seeded from crypto/rand.
func NewRoller() *Roller {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms; a zero seed still
		// yields a valid uniform source.
		return NewRollerWithSource(rand.NewSource(0))
	}
	return NewRollerWithSource(rand.NewSource(int64(binary.LittleEndian.Uint64(b[:]))))
}

// NewRollerWithSource returns a Roller over the given source, for
// deterministic tests.
func NewRollerWithSource(src rand.Source) *Roller {
	return &Roller{rng: rand.New(src)}
}

// RollD20 rolls one d20 and formats the narration line.
func (r *Roller) RollD20() Roll {
	value := r.rng.Intn(d20Sides) + 1
	return Roll{
		Value: value,
		Text:  fmt.Sprintf("You rolled a D20 and got a %d.", value),
	}
}

// Package posture classifies a tilt angle into lying or sitting with
// hysteresis and mirrors the result on an indicator output.
package posture

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// State is the classified posture.
type State int

const (
	Lying State = iota
	Sitting
)

func (s State) String() string {
	switch s {
	case Lying:
		return "lying"
	case Sitting:
		return "sitting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "lying":
		*s = Lying
	case "sitting":
		*s = Sitting
	default:
		return fmt.Errorf("posture: unknown state %q", b)
	}
	return nil
}

// Level is the indicator level for s.
func (s State) Level() gpio.Level {
	return s == Sitting
}

// Thresholds are the tilt angles, in degrees, that switch state. Angles
// between Lie and Sit keep the current state.
type Thresholds struct {
	Sit float64 // lying -> sitting when the angle is above
	Lie float64 // sitting -> lying when the angle is below
}

// DefaultThresholds are 45 degrees up and 30 degrees down.
var DefaultThresholds = Thresholds{Sit: 45, Lie: 30}

// Validate checks that the band is not inverted.
func (t Thresholds) Validate() error {
	if t.Lie > t.Sit {
		return fmt.Errorf("posture: lie threshold %.2f above sit threshold %.2f", t.Lie, t.Sit)
	}
	return nil
}

// Transition records a state change.
type Transition struct {
	From  State     `json:"from"`
	To    State     `json:"to"`
	Angle float64   `json:"angle"`
	Time  time.Time `json:"time"`
}

// Machine is the two-state classifier. It starts in Lying.
type Machine struct {
	state      State
	thresholds Thresholds
	indicator  gpio.PinOut
}

// New returns a Machine driving indicator, which may be nil.
func New(indicator gpio.PinOut, th Thresholds) (*Machine, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Machine{state: Lying, thresholds: th, indicator: indicator}, nil
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Step evaluates one angle. It returns the resulting state and whether it
// changed. The indicator is driven on every call, not only on transitions,
// and shows the state after this evaluation. Driving it from the state
// entering the call would leave the LED one cycle behind the decision.
func (m *Machine) Step(angle float64) (State, bool, error) {
	prev := m.state
	switch m.state {
	case Lying:
		if angle > m.thresholds.Sit {
			m.state = Sitting
		}
	case Sitting:
		if angle < m.thresholds.Lie {
			m.state = Lying
		}
	}
	if m.indicator != nil {
		if err := m.indicator.Out(m.state.Level()); err != nil {
			return m.state, m.state != prev, fmt.Errorf("posture: indicator %s: %w", m.indicator, err)
		}
	}
	return m.state, m.state != prev, nil
}

package env

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

const (
	mcMinPosition = -1.2
	mcMaxPosition = 0.6
	mcMaxSpeed    = 0.07
	mcGoal        = 0.5
	mcForce       = 0.001
	mcGravity     = 0.0025
	mcActions     = 3
)

// MountainCar drives an under powered car out of a valley.
//
// The observation is (position, velocity). Actions push left, do nothing, or push right. Each step
// costs a reward of -1 until the car reaches the flag on the right hill or maxSteps is reached.
type MountainCar struct {
	r                  *rand.Rand
	position, velocity float32
	steps, maxSteps    int
	done               bool
}

// NewMountainCar creates a mountain car whose episodes are cut after maxSteps steps.
func NewMountainCar(maxSteps int, seed uint64) *MountainCar {
	return &MountainCar{
		r:        rand.New(rand.NewSource(seed)),
		maxSteps: maxSteps,
		done:     true,
	}
}

func (m *MountainCar) ObservationSize() int { return 2 }
func (m *MountainCar) ActionSpace() int     { return mcActions }
func (m *MountainCar) SampleAction() int    { return m.r.Intn(mcActions) }

func (m *MountainCar) Reset() ([]float32, error) {
	m.position = m.r.Float32()*0.2 - 0.6
	m.velocity = 0
	m.steps = 0
	m.done = false
	return []float32{m.position, m.velocity}, nil
}

func (m *MountainCar) Step(action int) ([]float32, float32, bool, error) {
	if err := checkAction(action, mcActions); err != nil {
		return nil, 0, false, err
	}
	if m.done {
		return nil, 0, false, errors.New("mountaincar: step called on a finished episode")
	}

	m.velocity += float32(action-1)*mcForce - math32.Cos(3*m.position)*mcGravity
	m.velocity = clamp(m.velocity, -mcMaxSpeed, mcMaxSpeed)
	m.position = clamp(m.position+m.velocity, mcMinPosition, mcMaxPosition)
	if m.position == mcMinPosition && m.velocity < 0 {
		m.velocity = 0
	}
	m.steps++

	m.done = (m.position >= mcGoal && m.velocity >= 0) || m.steps >= m.maxSteps
	return []float32{m.position, m.velocity}, -1, m.done, nil
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}

package env

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

// TwoState is a deterministic toy task with two states and two actions.
//
// Taking action a moves the agent to state a. Landing in state 1 pays a reward of 1, landing in
// state 0 pays nothing. Observations are one-hot encodings of the current state and every
// episode lasts exactly maxSteps steps, always starting in state 0.
type TwoState struct {
	r        *rand.Rand
	state    int
	steps    int
	maxSteps int
	done     bool
}

// NewTwoState creates the toy task. The seed only affects SampleAction.
func NewTwoState(maxSteps int, seed uint64) *TwoState {
	return &TwoState{
		r:        rand.New(rand.NewSource(seed)),
		maxSteps: maxSteps,
		done:     true,
	}
}

func (t *TwoState) ObservationSize() int { return 2 }
func (t *TwoState) ActionSpace() int     { return 2 }
func (t *TwoState) SampleAction() int    { return t.r.Intn(2) }

func (t *TwoState) Reset() ([]float32, error) {
	t.state = 0
	t.steps = 0
	t.done = false
	return oneHot(t.state), nil
}

func (t *TwoState) Step(action int) ([]float32, float32, bool, error) {
	if err := checkAction(action, 2); err != nil {
		return nil, 0, false, err
	}
	if t.done {
		return nil, 0, false, errors.New("twostate: step called on a finished episode")
	}
	t.state = action
	t.steps++
	t.done = t.steps >= t.maxSteps

	var reward float32
	if t.state == 1 {
		reward = 1
	}
	return oneHot(t.state), reward, t.done, nil
}

func oneHot(s int) []float32 {
	retVal := make([]float32, 2)
	retVal[s] = 1
	return retVal
}

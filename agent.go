package deepq

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gorgonia.org/vecf32"
)

// An Agent acts on an environment with an epsilon-greedy policy over the action values of NN.
type Agent struct {
	NN Approximator

	actions int
	r       *rand.Rand
}

// NewAgent creates an agent choosing among actions discrete actions.
func NewAgent(nn Approximator, actions int, seed uint64) *Agent {
	return &Agent{
		NN:      nn,
		actions: actions,
		r:       rand.New(rand.NewSource(seed)),
	}
}

// SelectAction returns a uniformly random action with probability epsilon, and otherwise the
// action with the highest predicted value. Ties go to the lowest action.
func (a *Agent) SelectAction(state []float32, epsilon float32) (int, error) {
	if a.r.Float32() < epsilon {
		return a.r.Intn(a.actions), nil
	}
	q, err := a.QValues(state)
	if err != nil {
		return 0, err
	}
	return vecf32.Argmax(q), nil
}

// QValues returns the predicted action values of state.
func (a *Agent) QValues(state []float32) ([]float32, error) {
	q, err := a.NN.Predict([][]float32{state})
	if err != nil {
		return nil, errors.Wrap(err, "predicting action values")
	}
	if len(q) != 1 || len(q[0]) != a.actions {
		return nil, errors.Errorf("approximator returned %d rows, want 1 row of %d values", len(q), a.actions)
	}
	return q[0], nil
}

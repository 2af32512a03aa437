package replay

import (
	"github.com/deepq/env"
	"github.com/pkg/errors"
)

// Burn fills the memory with n transitions generated by a uniformly random policy on e.
//
// Episodes that terminate are followed by a fresh reset until exactly n transitions have been
// recorded. Transitions go through Append, so when n exceeds the capacity only the newest
// Cap() of them survive.
func (m *Memory) Burn(e env.Environment, n int) error {
	if n < 0 {
		return errors.Errorf("replay: burn in count must not be negative, got %d", n)
	}
	for i := 0; i < n; {
		state, err := e.Reset()
		if err != nil {
			return errors.Wrap(err, "burn in reset")
		}
		for done := false; !done && i < n; i++ {
			action := e.SampleAction()
			var next []float32
			var reward float32
			if next, reward, done, err = e.Step(action); err != nil {
				return errors.Wrapf(err, "burn in step %d", i)
			}
			m.Append(Transition{
				State:     state,
				Action:    action,
				Reward:    reward,
				NextState: next,
				Terminal:  done,
			})
			state = next
		}
	}
	return nil
}

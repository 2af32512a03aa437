package deepq

import (
	"github.com/deepq/env"
	"github.com/pkg/errors"
)

// Arena plays whole episodes with an agent's policy without learning from them.
type Arena struct {
	agent *Agent
	env   env.Environment
}

// MakeArena makes an arena for agent on e.
func MakeArena(agent *Agent, e env.Environment) Arena {
	return Arena{agent: agent, env: e}
}

// Play runs one episode with the given exploration rate and returns its total reward and length.
func (a *Arena) Play(epsilon float32) (total float32, steps int, err error) {
	state, err := a.env.Reset()
	if err != nil {
		return 0, 0, errors.Wrap(err, "reset")
	}
	for done := false; !done; steps++ {
		var action int
		if action, err = a.agent.SelectAction(state, epsilon); err != nil {
			return total, steps, err
		}
		var reward float32
		if state, reward, done, err = a.env.Step(action); err != nil {
			return total, steps, errors.Wrapf(err, "step %d", steps)
		}
		total += reward
	}
	return total, steps, nil
}

// Evaluate plays episodes and returns the total reward of each.
func (a *Arena) Evaluate(episodes int, epsilon float32) ([]float32, error) {
	rewards := make([]float32, episodes)
	for i := range rewards {
		var err error
		if rewards[i], _, err = a.Play(epsilon); err != nil {
			return nil, errors.WithMessagef(err, "evaluation episode %d", i)
		}
	}
	return rewards, nil
}

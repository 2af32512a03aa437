// Package env provides the environments a DQN agent can be trained on.
package env

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrUnknownEnv is returned by Make for an unregistered environment name.
var ErrUnknownEnv = errors.New("env: unknown environment")

// Environment is a discrete action, episodic control task.
type Environment interface {
	// Reset starts a new episode and returns its first observation.
	Reset() ([]float32, error)
	// Step applies action and returns the next observation, the reward and whether the episode ended.
	Step(action int) (next []float32, reward float32, done bool, err error)
	// SampleAction returns a uniformly random valid action.
	SampleAction() int

	ObservationSize() int // length of every observation
	ActionSpace() int     // number of discrete actions
}

// Constructor builds an environment whose randomness is drawn from seed.
type Constructor func(seed uint64) Environment

var registry = map[string]Constructor{
	"CartPole-v0":    func(seed uint64) Environment { return NewCartPole(200, seed) },
	"CartPole-v1":    func(seed uint64) Environment { return NewCartPole(500, seed) },
	"MountainCar-v0": func(seed uint64) Environment { return NewMountainCar(200, seed) },
	"TwoState-v0":    func(seed uint64) Environment { return NewTwoState(10, seed) },
}

// Make builds the environment registered under name.
func Make(name string, seed uint64) (Environment, error) {
	c, ok := registry[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEnv, "%q", name)
	}
	return c(seed), nil
}

// Names lists the registered environment names in sorted order.
func Names() []string {
	retVal := make([]string, 0, len(registry))
	for k := range registry {
		retVal = append(retVal, k)
	}
	sort.Strings(retVal)
	return retVal
}

func checkAction(action, n int) error {
	if action < 0 || action >= n {
		return errors.Errorf("env: invalid action %d, action space is %d", action, n)
	}
	return nil
}

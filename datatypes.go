package deepq

import (
	"encoding/json"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Config for the DQN learner.
// It holds the environment, the learning rate and exploration schedules, the replay memory
// sizing and the evaluation and checkpoint cadence.
type Config struct {
	EnvName string  `json:"env_name"`
	Gamma   float32 `json:"gamma"` // discount factor

	// learning rate: base_lr * lr_decay_rate^(step / lr_decay_steps), never below lr_clip
	BaseLR       float32 `json:"base_lr"`
	LRDecaySteps int     `json:"lr_decay_steps"`
	LRDecayRate  float32 `json:"lr_decay_rate"`
	LRClip       float32 `json:"lr_clip"`

	// exploration: linear from init_epsilon to final_epsilon over epsilon_decay_steps
	InitEpsilon       float32 `json:"init_epsilon"`
	FinalEpsilon      float32 `json:"final_epsilon"`
	EpsilonDecaySteps int     `json:"epsilon_decay_steps"`

	MaxIter int `json:"max_iter"` // total environment steps

	Replay     bool `json:"replay"`
	MemorySize int  `json:"memory_size"`
	BurnIn     int  `json:"burn_in"`
	BatchSize  int  `json:"batch_size"`

	StepsPerEval int `json:"steps_per_eval"`
	EvalEpisodes int `json:"eval_episodes"`

	Restore         bool   `json:"restore"`
	LogDir          string `json:"log_dir"`
	KeepCheckpoints int    `json:"keep_checkpoints"` // 0 keeps every checkpoint

	Hidden []int  `json:"hidden"` // hidden layer widths of the Q network
	Seed   uint64 `json:"seed"`
}

// DefaultConfig returns the configuration used for CartPole.
func DefaultConfig() Config {
	return Config{
		EnvName:           "CartPole-v0",
		Gamma:             0.99,
		BaseLR:            1e-3,
		LRDecaySteps:      100000,
		LRDecayRate:       0.5,
		LRClip:            1e-5,
		InitEpsilon:       0.5,
		FinalEpsilon:      0.05,
		EpsilonDecaySteps: 100000,
		MaxIter:           1000000,
		Replay:            true,
		MemorySize:        50000,
		BurnIn:            10000,
		BatchSize:         32,
		StepsPerEval:      10000,
		EvalEpisodes:      20,
		LogDir:            "logs",
		KeepCheckpoints:   5,
		Seed:              1,
	}
}

// LoadConfig reads a JSON configuration. Fields missing from the file keep their default values.
func LoadConfig(filename string) (Config, error) {
	conf := DefaultConfig()
	f, err := os.Open(filename)
	if err != nil {
		return conf, errors.WithStack(err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err = dec.Decode(&conf); err != nil {
		return conf, errors.Wrapf(err, "parsing %s", filename)
	}
	return conf, nil
}

// Save writes the configuration as indented JSON, readable by LoadConfig.
func (c Config) Save(filename string) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(filename, append(b, '\n'), 0644))
}

// UpdateBatch is the number of transitions in every gradient step.
func (c Config) UpdateBatch() int {
	if c.Replay {
		return c.BatchSize
	}
	return 1
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs error
	fail := func(format string, args ...interface{}) {
		errs = multierror.Append(errs, errors.Errorf(format, args...))
	}

	if c.EnvName == "" {
		fail("env_name is required")
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		fail("gamma must be in [0, 1], got %v", c.Gamma)
	}
	if c.BaseLR <= 0 {
		fail("base_lr must be positive, got %v", c.BaseLR)
	}
	if c.LRDecaySteps <= 0 {
		fail("lr_decay_steps must be positive, got %d", c.LRDecaySteps)
	}
	if c.LRDecayRate <= 0 || c.LRDecayRate > 1 {
		fail("lr_decay_rate must be in (0, 1], got %v", c.LRDecayRate)
	}
	if c.LRClip < 0 {
		fail("lr_clip must not be negative, got %v", c.LRClip)
	}
	if c.InitEpsilon < 0 || c.InitEpsilon > 1 || c.FinalEpsilon < 0 || c.FinalEpsilon > 1 {
		fail("epsilons must be in [0, 1], got %v and %v", c.InitEpsilon, c.FinalEpsilon)
	}
	if c.FinalEpsilon > c.InitEpsilon {
		fail("final_epsilon %v exceeds init_epsilon %v", c.FinalEpsilon, c.InitEpsilon)
	}
	if c.EpsilonDecaySteps < 0 {
		fail("epsilon_decay_steps must not be negative, got %d", c.EpsilonDecaySteps)
	}
	if c.MaxIter <= 0 {
		fail("max_iter must be positive, got %d", c.MaxIter)
	}
	if c.Replay {
		switch {
		case c.MemorySize <= 0:
			fail("memory_size must be positive, got %d", c.MemorySize)
		case c.BurnIn < 0:
			fail("burn_in must not be negative, got %d", c.BurnIn)
		case c.BatchSize <= 0:
			fail("batch_size must be positive, got %d", c.BatchSize)
		case c.BatchSize > minInt(c.BurnIn+1, c.MemorySize):
			// the first sample happens right after one append on top of the burn in
			fail("batch_size %d exceeds the %d transitions available at the first update",
				c.BatchSize, minInt(c.BurnIn+1, c.MemorySize))
		}
	}
	if c.StepsPerEval <= 0 {
		fail("steps_per_eval must be positive, got %d", c.StepsPerEval)
	}
	if c.EvalEpisodes <= 0 {
		fail("eval_episodes must be positive, got %d", c.EvalEpisodes)
	}
	if c.LogDir == "" {
		fail("log_dir is required")
	}
	if c.KeepCheckpoints < 0 {
		fail("keep_checkpoints must not be negative, got %d", c.KeepCheckpoints)
	}
	for i, h := range c.Hidden {
		if h <= 0 {
			fail("hidden layer %d has width %d", i, h)
		}
	}
	return errs
}

// Approximator is the action-value function being learnt.
//
// Predict maps a batch of states to their action values. Update takes one gradient step with
// learning rate lr on the mean squared error between targets and the predicted values of the
// actions taken, returning that error.
type Approximator interface {
	Predict(states [][]float32) ([][]float32, error)
	Update(states [][]float32, actions []int, targets []float32, lr float32) (loss float32, err error)
	Save(filename string) error
	Restore(filename string) error
}

// Recorder is a sink for scalar time series keyed by step.
type Recorder interface {
	Record(tag string, step int, value float64)
}

type nopRecorder struct{}

func (nopRecorder) Record(string, int, float64) {}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

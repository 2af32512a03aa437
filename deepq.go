// Package deepq trains a deep Q-network on a discrete action environment.
//
// The learner is a single network DQN: bootstrapped targets are computed with the same network
// that is being trained, optionally over minibatches drawn from an experience replay memory.
package deepq

import (
	"log"
	"os"

	"github.com/deepq/checkpoint"
	"github.com/deepq/env"
	"github.com/deepq/replay"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// DQN is the top level structure and the entry point of the API.
// It wraps the environment, the Q network and the replay memory that compose the algorithm.
type DQN struct {
	*Agent

	conf    Config
	env     env.Environment
	arena   Arena // evaluation, on its own environment
	memory  *replay.Memory
	saver   *checkpoint.Manager
	metrics Recorder
	logger  *log.Logger

	state TrainState
}

// New DQN learner. train is stepped for learning and burn in, eval is only used for evaluation.
// nn must accept Update batches of conf.UpdateBatch() rows.
func New(conf Config, train, eval env.Environment, nn Approximator) (*DQN, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid config")
	}
	if train.ActionSpace() != eval.ActionSpace() || train.ObservationSize() != eval.ObservationSize() {
		return nil, errors.New("training and evaluation environments differ")
	}

	agent := NewAgent(nn, train.ActionSpace(), conf.Seed)
	d := &DQN{
		Agent:   agent,
		conf:    conf,
		env:     train,
		arena:   MakeArena(agent, eval),
		metrics: nopRecorder{},
		logger:  log.New(os.Stderr, "", log.LstdFlags),
	}
	if conf.Replay && conf.BurnIn > conf.MemorySize {
		d.logger.Printf("burn_in %d exceeds memory_size %d, only the newest %d burn in transitions are kept",
			conf.BurnIn, conf.MemorySize, conf.MemorySize)
	}
	return d, nil
}

// SetRecorder sends the training curves to r.
func (d *DQN) SetRecorder(r Recorder) { d.metrics = r }

// SetLogger replaces the logger used for progress reports.
func (d *DQN) SetLogger(l *log.Logger) { d.logger = l }

// Memory returns the replay memory. It is nil until Train runs with replay enabled.
func (d *DQN) Memory() *replay.Memory { return d.memory }

// State returns the current training state.
func (d *DQN) State() TrainState { return d.state }

// Evaluate plays episodes on the evaluation environment and returns the total reward of each.
// It neither learns nor touches the replay memory.
func (d *DQN) Evaluate(episodes int, epsilon float32) ([]float32, error) {
	return d.arena.Evaluate(episodes, epsilon)
}

// Restore loads the most recent checkpoint under the log directory and resumes the schedules
// from its step.
func (d *DQN) Restore() error {
	filename, step, err := checkpoint.Latest(d.conf.LogDir)
	if err != nil {
		return err
	}
	if err = d.NN.Restore(filename); err != nil {
		return errors.WithMessagef(err, "restoring %s", filename)
	}
	d.state.GlobalStep = step
	d.logger.Printf("Restored %s at step %d", filename, step)
	return nil
}

func (d *DQN) save() error {
	filename, err := d.saver.Save(d.NN, d.state.GlobalStep)
	if err != nil {
		return err
	}
	d.logger.Printf("Saved %s", filename)
	return nil
}

// Train runs conf.MaxIter environment steps of learning.
//
// A checkpoint is written before the first step, every MaxIter/3 steps, and after the last step.
func (d *DQN) Train() (err error) {
	conf := d.conf
	if d.saver, err = checkpoint.NewManager(conf.LogDir, conf.KeepCheckpoints); err != nil {
		return err
	}
	if conf.Restore {
		if err = d.Restore(); err != nil {
			return err
		}
	}
	if err = d.save(); err != nil {
		return err
	}
	stepsPerSave := conf.MaxIter / 3

	if conf.Replay {
		if d.memory, err = replay.New(conf.MemorySize, conf.Seed+1); err != nil {
			return err
		}
		d.logger.Printf("Burning in %d transitions", conf.BurnIn)
		if err = d.memory.Burn(d.env, conf.BurnIn); err != nil {
			return err
		}
	}

	state, err := d.env.Reset()
	if err != nil {
		return errors.Wrap(err, "reset")
	}
	d.state.Step = 0
	d.state.EpisodeStart = 0
	for d.state.Step < conf.MaxIter {
		if state, err = d.learn(state); err != nil {
			return errors.WithMessagef(err, "step %d", d.state.Step)
		}
		s := &d.state

		if s.Step%conf.StepsPerEval == 0 {
			if err = d.report(state); err != nil {
				return err
			}
			if state, err = d.env.Reset(); err != nil {
				return errors.Wrap(err, "reset")
			}
			s.EpisodeStart = s.Step
		}
		if stepsPerSave > 0 && s.Step%stepsPerSave == 0 {
			if err = d.save(); err != nil {
				return err
			}
		}
	}
	return d.save()
}

// learn takes one environment step from state, one gradient step, and returns the state to
// continue from.
func (d *DQN) learn(state []float32) ([]float32, error) {
	conf := d.conf
	s := &d.state
	s.Epsilon = PolynomialDecay(conf.InitEpsilon, conf.FinalEpsilon, conf.EpsilonDecaySteps, s.GlobalStep)
	s.LearnRate = StaircaseDecay(conf.BaseLR, conf.LRDecayRate, conf.LRDecaySteps, conf.LRClip, s.GlobalStep)

	action, err := d.SelectAction(state, s.Epsilon)
	if err != nil {
		return nil, err
	}
	next, reward, done, err := d.env.Step(action)
	if err != nil {
		return nil, errors.Wrap(err, "environment step")
	}
	t := replay.Transition{
		State:     state,
		Action:    action,
		Reward:    reward,
		NextState: next,
		Terminal:  done,
	}

	var b replay.Batch
	if conf.Replay {
		d.memory.Append(t)
		if b, err = d.memory.Sample(conf.BatchSize); err != nil {
			return nil, err
		}
	} else {
		b = replay.Batch{
			States:     [][]float32{t.State},
			Actions:    []int{t.Action},
			Rewards:    []float32{t.Reward},
			NextStates: [][]float32{t.NextState},
			Terminals:  []bool{t.Terminal},
		}
	}

	nextQ, err := d.NN.Predict(b.NextStates)
	if err != nil {
		return nil, errors.Wrap(err, "predicting next state values")
	}
	targets := TDTargets(b.Rewards, nextQ, b.Terminals, conf.Gamma)
	if s.Loss, err = d.NN.Update(b.States, b.Actions, targets, s.LearnRate); err != nil {
		return nil, errors.Wrap(err, "update")
	}

	s.Step++
	s.GlobalStep++
	d.metrics.Record("loss", s.Step, float64(s.Loss))
	d.metrics.Record("learning_rate", s.Step, float64(s.LearnRate))
	d.metrics.Record("epsilon", s.Step, float64(s.Epsilon))

	if !done {
		return next, nil
	}
	d.metrics.Record("episode_length", s.Step, float64(s.Step-s.EpisodeStart))
	s.EpisodeStart = s.Step
	if state, err = d.env.Reset(); err != nil {
		return nil, errors.Wrap(err, "reset")
	}
	return state, nil
}

// report evaluates the near greedy policy and logs the diagnostics.
func (d *DQN) report(state []float32) error {
	rewards, err := d.Evaluate(d.conf.EvalEpisodes, d.conf.FinalEpsilon)
	if err != nil {
		return err
	}
	rs := make([]float64, len(rewards))
	for i, r := range rewards {
		rs[i] = float64(r)
	}
	mean, std := stat.MeanStdDev(rs, nil)
	d.metrics.Record("average_reward", d.state.Step, mean)

	q, err := d.QValues(state)
	if err != nil {
		return err
	}
	d.logger.Printf("Step: %d    Average reward: %f (std %f)", d.state.Step, mean, std)
	d.logger.Printf("Q values %v", q)
	d.logger.Printf("Rewards %v", rewards)
	d.logger.Printf("Loss: %v", d.state.Loss)
	return nil
}

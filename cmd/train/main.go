package main

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/deepq"
	"github.com/deepq/env"
	"github.com/deepq/metrics"
	"github.com/deepq/qnet"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// bindFlags registers a flag per config field, using the current values of conf as defaults.
func bindFlags(fs *pflag.FlagSet, conf *deepq.Config) {
	fs.StringVar(&conf.EnvName, "env_name", conf.EnvName, "environment name")
	fs.Float32Var(&conf.Gamma, "gamma", conf.Gamma, "discount factor")
	fs.Float32Var(&conf.BaseLR, "base_lr", conf.BaseLR, "initial learning rate")
	fs.IntVar(&conf.LRDecaySteps, "lr_decay_steps", conf.LRDecaySteps, "steps per learning rate decay")
	fs.Float32Var(&conf.LRDecayRate, "lr_decay_rate", conf.LRDecayRate, "learning rate decay factor")
	fs.Float32Var(&conf.LRClip, "lr_clip", conf.LRClip, "minimum learning rate")
	fs.Float32Var(&conf.InitEpsilon, "init_epsilon", conf.InitEpsilon, "initial exploration rate")
	fs.Float32Var(&conf.FinalEpsilon, "final_epsilon", conf.FinalEpsilon, "final exploration rate")
	fs.IntVar(&conf.EpsilonDecaySteps, "epsilon_decay_steps", conf.EpsilonDecaySteps, "steps to reach the final exploration rate")
	fs.IntVar(&conf.MaxIter, "max_iter", conf.MaxIter, "environment steps to train for")
	fs.BoolVar(&conf.Replay, "replay", conf.Replay, "learn from an experience replay memory")
	fs.IntVar(&conf.MemorySize, "memory_size", conf.MemorySize, "replay memory capacity")
	fs.IntVar(&conf.BurnIn, "burn_in", conf.BurnIn, "random transitions stored before learning")
	fs.IntVar(&conf.BatchSize, "batch_size", conf.BatchSize, "replay minibatch size")
	fs.IntVar(&conf.StepsPerEval, "steps_per_eval", conf.StepsPerEval, "steps between evaluations")
	fs.IntVar(&conf.EvalEpisodes, "eval_episodes", conf.EvalEpisodes, "episodes per evaluation")
	fs.BoolVar(&conf.Restore, "restore", conf.Restore, "resume from the latest checkpoint in log_dir")
	fs.StringVar(&conf.LogDir, "log_dir", conf.LogDir, "directory for checkpoints and metrics")
	fs.IntVar(&conf.KeepCheckpoints, "keep_checkpoints", conf.KeepCheckpoints, "checkpoints to retain, 0 keeps all")
	fs.IntSliceVar(&conf.Hidden, "hidden", conf.Hidden, "hidden layer widths")
	fs.Uint64Var(&conf.Seed, "seed", conf.Seed, "random seed")
}

// loadConfig reads filename and applies the flags that were set explicitly on top of it.
func loadConfig(filename string, set *pflag.FlagSet) (deepq.Config, error) {
	conf, err := deepq.LoadConfig(filename)
	if err != nil {
		return conf, err
	}
	overrides := pflag.NewFlagSet("overrides", pflag.ContinueOnError)
	bindFlags(overrides, &conf)
	set.Visit(func(f *pflag.Flag) {
		if overrides.Lookup(f.Name) == nil {
			return
		}
		value := f.Value.String()
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			value = strings.Join(sv.GetSlice(), ",")
		}
		if e := overrides.Set(f.Name, value); e != nil {
			err = multierror.Append(err, e)
		}
	})
	return conf, err
}

func train(conf deepq.Config, dotFile string) (err error) {
	trainEnv, err := env.Make(conf.EnvName, conf.Seed)
	if err != nil {
		return err
	}
	evalEnv, err := env.Make(conf.EnvName, conf.Seed+100)
	if err != nil {
		return err
	}

	nn, err := qnet.New(qnet.Config{
		Inputs:    trainEnv.ObservationSize(),
		Hidden:    conf.Hidden,
		Actions:   trainEnv.ActionSpace(),
		BatchSize: conf.UpdateBatch(),
		LearnRate: float64(conf.BaseLR),
	})
	if err != nil {
		return err
	}
	defer nn.Close()

	if dotFile != "" {
		f, err := os.Create(dotFile)
		if err != nil {
			return errors.WithStack(err)
		}
		err = nn.WriteDot(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	d, err := deepq.New(conf, trainEnv, evalEnv, nn)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(conf.LogDir, 0755); err != nil {
		return errors.WithStack(err)
	}
	if err = conf.Save(filepath.Join(conf.LogDir, "config.json")); err != nil {
		return err
	}

	rec := metrics.New(filepath.Join(conf.LogDir, "metrics"))
	d.SetRecorder(rec)
	defer func() {
		if e := rec.Flush(); e != nil {
			err = multierror.Append(err, e)
			return
		}
		if e := rec.Dashboard(); e != nil {
			err = multierror.Append(err, e)
		}
		for _, tag := range rec.Tags() {
			if e := rec.Plot(tag); e != nil {
				err = multierror.Append(err, e)
			}
		}
	}()

	log.Printf("Training on %s for %d steps", conf.EnvName, conf.MaxIter)
	return d.Train()
}

func main() {
	conf := deepq.DefaultConfig()
	var configFile, dotFile string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a deep Q-network",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				var err error
				if conf, err = loadConfig(configFile, cmd.Flags()); err != nil {
					return err
				}
			}
			return train(conf, dotFile)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "JSON config file, explicit flags take precedence")
	cmd.Flags().StringVar(&dotFile, "dot", "", "write the Q network graph in dot format to this file")
	bindFlags(cmd.Flags(), &conf)

	if err := cmd.Execute(); err != nil {
		log.Fatalf("error when training: %+v", err)
	}
}

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/deepq"
	"github.com/deepq/checkpoint"
	"github.com/deepq/env"
	"github.com/deepq/qnet"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

type options struct {
	logDir   string
	envName  string
	episodes int
	epsilon  float32
	seed     uint64
}

// modelConfig returns the config a run under logDir was trained with, or the defaults.
func modelConfig(logDir string) (deepq.Config, error) {
	filename := filepath.Join(logDir, "config.json")
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return deepq.DefaultConfig(), nil
	}
	return deepq.LoadConfig(filename)
}

func infer(opts options) error {
	conf, err := modelConfig(opts.logDir)
	if err != nil {
		return err
	}
	if opts.envName != "" {
		conf.EnvName = opts.envName
	}
	e, err := env.Make(conf.EnvName, opts.seed)
	if err != nil {
		return err
	}

	nn, err := qnet.New(qnet.Config{
		Inputs:    e.ObservationSize(),
		Hidden:    conf.Hidden,
		Actions:   e.ActionSpace(),
		BatchSize: 1,
		LearnRate: float64(conf.BaseLR),
	})
	if err != nil {
		return err
	}
	defer nn.Close()

	filename, step, err := checkpoint.Latest(opts.logDir)
	if err != nil {
		return err
	}
	if err = nn.Restore(filename); err != nil {
		return err
	}
	log.Printf("Loaded %s (step %d)", filename, step)

	arena := deepq.MakeArena(deepq.NewAgent(nn, e.ActionSpace(), opts.seed), e)
	rewards, err := arena.Evaluate(opts.episodes, opts.epsilon)
	if err != nil {
		return err
	}
	rs := make([]float64, len(rewards))
	for i, r := range rewards {
		rs[i] = float64(r)
		fmt.Printf("episode %d: %v\n", i, r)
	}
	mean, std := stat.MeanStdDev(rs, nil)
	fmt.Printf("average reward %f (std %f) over %d episodes\n", mean, std, len(rewards))
	return nil
}

func main() {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Play episodes with a trained deep Q-network",
		RunE: func(cmd *cobra.Command, args []string) error {
			return infer(opts)
		},
	}
	cmd.Flags().StringVar(&opts.logDir, "log_dir", "logs", "directory the model was trained in")
	cmd.Flags().StringVar(&opts.envName, "env_name", "", "environment name, defaults to the one trained on")
	cmd.Flags().IntVar(&opts.episodes, "episodes", 20, "episodes to play")
	cmd.Flags().Float32Var(&opts.epsilon, "epsilon", 0.05, "exploration rate")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "random seed")

	if err := cmd.Execute(); err != nil {
		log.Fatalf("error when playing: %+v", err)
	}
}

package deepq

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/deepq/checkpoint"
	"github.com/deepq/env"
	"github.com/deepq/metrics"
	"github.com/deepq/qnet"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type update struct {
	states  [][]float32
	actions []int
	targets []float32
	lr      float32
}

// fakeNN predicts the same action values for every state and records what it is asked to do.
type fakeNN struct {
	values   []float32
	predicts int
	updates  []update
	saves    []string
	restored string
}

func (f *fakeNN) Predict(states [][]float32) ([][]float32, error) {
	f.predicts++
	retVal := make([][]float32, len(states))
	for i := range retVal {
		retVal[i] = append([]float32(nil), f.values...)
	}
	return retVal, nil
}

func (f *fakeNN) Update(states [][]float32, actions []int, targets []float32, lr float32) (float32, error) {
	f.updates = append(f.updates, update{states, actions, targets, lr})
	return 0.5, nil
}

func (f *fakeNN) Save(filename string) error {
	f.saves = append(f.saves, filepath.Base(filename))
	return ioutil.WriteFile(filename, []byte("fake"), 0644)
}

func (f *fakeNN) Restore(filename string) error {
	f.restored = filepath.Base(filename)
	return nil
}

func quiet() *log.Logger { return log.New(ioutil.Discard, "", 0) }

func toyConfig(t *testing.T) Config {
	conf := DefaultConfig()
	conf.EnvName = "TwoState-v0"
	conf.Gamma = 0.9
	conf.MaxIter = 30
	conf.MemorySize = 100
	conf.BurnIn = 50
	conf.BatchSize = 8
	conf.FinalEpsilon = 0
	conf.EpsilonDecaySteps = 20
	conf.LRDecaySteps = 10
	conf.StepsPerEval = 10
	conf.EvalEpisodes = 2
	conf.LogDir = t.TempDir()
	conf.KeepCheckpoints = 0
	return conf
}

func newToy(t *testing.T, conf Config, nn Approximator) *DQN {
	train, err := env.Make(conf.EnvName, 1)
	require.NoError(t, err)
	eval, err := env.Make(conf.EnvName, 2)
	require.NoError(t, err)
	d, err := New(conf, train, eval, nn)
	require.NoError(t, err)
	d.SetLogger(quiet())
	return d
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	conf := DefaultConfig()
	conf.Gamma = 2
	conf.MaxIter = 0
	conf.FinalEpsilon = 0.9
	conf.LogDir = ""
	err := conf.Validate()
	require.Error(t, err)
	merr, ok := err.(*multierror.Error)
	require.True(t, ok)
	assert.Len(t, merr.Errors, 4)

	conf = DefaultConfig()
	conf.BurnIn = 10
	conf.BatchSize = 32
	assert.Error(t, conf.Validate(), "batch larger than the burn in")

	conf.Replay = false
	assert.NoError(t, conf.Validate(), "online updates ignore the memory sizing")
	assert.Equal(t, 1, conf.UpdateBatch())
}

func TestLoadConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "conf.json")
	b, err := json.Marshal(map[string]interface{}{"env_name": "MountainCar-v0", "replay": false, "hidden": []int{64}})
	require.NoError(t, err)
	require.NoError(t, ioutil.WriteFile(filename, b, 0644))

	conf, err := LoadConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, "MountainCar-v0", conf.EnvName)
	assert.False(t, conf.Replay)
	assert.Equal(t, []int{64}, conf.Hidden)
	assert.Equal(t, DefaultConfig().Gamma, conf.Gamma)

	conf.Seed = 7
	require.NoError(t, conf.Save(filename))
	saved, err := LoadConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, conf, saved)

	require.NoError(t, ioutil.WriteFile(filename, []byte(`{"gama": 0.5}`), 0644))
	_, err = LoadConfig(filename)
	assert.Error(t, err, "unknown field")
}

func TestNewRejectsInvalid(t *testing.T) {
	conf := toyConfig(t)
	conf.BatchSize = 0
	train := env.NewTwoState(10, 1)
	_, err := New(conf, train, env.NewCartPole(10, 1), &fakeNN{})
	assert.Error(t, err)

	conf = toyConfig(t)
	_, err = New(conf, train, env.NewCartPole(10, 1), &fakeNN{})
	assert.Error(t, err, "mismatched environments")
}

// recordingEnv remembers every action it is stepped with.
type recordingEnv struct {
	env.Environment
	actions []int
}

func (e *recordingEnv) Step(action int) ([]float32, float32, bool, error) {
	e.actions = append(e.actions, action)
	return e.Environment.Step(action)
}

func TestTrainReplay(t *testing.T) {
	conf := toyConfig(t)
	conf.MaxIter = 60
	nn := &fakeNN{values: []float32{2, 5}}
	eval := &recordingEnv{Environment: env.NewTwoState(10, 2)}
	d, err := New(conf, env.NewTwoState(10, 1), eval, nn)
	require.NoError(t, err)
	d.SetLogger(quiet())
	rec := metrics.New("")
	d.SetRecorder(rec)

	require.NoError(t, d.Train())

	// one minibatch update per environment step
	require.Len(t, nn.updates, conf.MaxIter)
	for i, u := range nn.updates {
		require.Len(t, u.states, conf.BatchSize)
		require.Len(t, u.actions, conf.BatchSize)
		for _, tgt := range u.targets {
			// rewards are 0 or 1, non terminal targets add 0.9 * 5
			assert.Contains(t, []float32{0, 1, 4.5, 5.5}, tgt, "update %d", i)
		}
		assert.Equal(t, StaircaseDecay(conf.BaseLR, conf.LRDecayRate, conf.LRDecaySteps, conf.LRClip, i), u.lr)
	}

	// burn in plus one transition per step wraps the ring: the 10 oldest burn in transitions are
	// gone and slots 0-9 hold the last 10 steps, taken greedily once exploration reached 0
	m := d.Memory()
	require.NotNil(t, m)
	assert.Equal(t, conf.MemorySize, m.Len())
	for i := 0; i < conf.BurnIn+conf.MaxIter-conf.MemorySize; i++ {
		assert.Equal(t, 1, m.At(i).Action, "slot %d", i)
	}

	eps := rec.Series("epsilon")
	require.Len(t, eps, conf.MaxIter)
	for i, p := range eps {
		assert.Equal(t, i+1, p.Step)
		assert.Equal(t, float64(PolynomialDecay(conf.InitEpsilon, conf.FinalEpsilon, conf.EpsilonDecaySteps, i)), p.Value, "step %d", i)
	}

	s := d.State()
	assert.Equal(t, conf.MaxIter, s.Step)
	assert.Equal(t, conf.MaxIter, s.GlobalStep)
	assert.Equal(t, conf.FinalEpsilon, s.Epsilon)

	// initial, every max_iter/3 steps, and final
	assert.Equal(t, []string{"model-0.gob", "model-20.gob", "model-40.gob", "model-60.gob", "model-60.gob"}, nn.saves)
	_, step, err := checkpoint.Latest(conf.LogDir)
	require.NoError(t, err)
	assert.Equal(t, 60, step)

	assert.Len(t, rec.Series("loss"), conf.MaxIter)
	assert.Len(t, rec.Series("learning_rate"), conf.MaxIter)
	assert.Len(t, rec.Series("average_reward"), conf.MaxIter/conf.StepsPerEval)
	for _, p := range rec.Series("average_reward") {
		// greedy on these values always takes action 1, paying 1 per step
		assert.Equal(t, 10.0, p.Value)
	}
	for _, p := range rec.Series("episode_length") {
		assert.Equal(t, 10.0, p.Value)
	}

	// evaluation plays at the final exploration rate, even while training still explores
	require.Len(t, eval.actions, conf.MaxIter/conf.StepsPerEval*conf.EvalEpisodes*10)
	for i, a := range eval.actions {
		assert.Equal(t, 1, a, "evaluation step %d", i)
	}
}

func TestTrainOnline(t *testing.T) {
	conf := toyConfig(t)
	conf.Replay = false
	conf.InitEpsilon = 0
	conf.FinalEpsilon = 0
	conf.MaxIter = 20
	conf.StepsPerEval = 1000
	nn := &fakeNN{values: []float32{2, 5}}
	d := newToy(t, conf, nn)

	require.NoError(t, d.Train())
	assert.Nil(t, d.Memory())
	require.Len(t, nn.updates, 20)

	for i, u := range nn.updates {
		require.Len(t, u.states, 1)
		assert.Equal(t, []int{1}, u.actions)
		want := float32(5.5)
		if (i+1)%10 == 0 {
			// the last step of every episode has no future value
			want = 1
		}
		assert.InDelta(t, want, u.targets[0], 1e-6, "update %d", i)
	}
	// the first episode starts in state 0, every later step is in state 1
	assert.Equal(t, []float32{1, 0}, nn.updates[0].states[0])
	assert.Equal(t, []float32{0, 1}, nn.updates[1].states[0])
	assert.Equal(t, []float32{1, 0}, nn.updates[10].states[0])
}

func TestTrainRestore(t *testing.T) {
	conf := toyConfig(t)
	first := &fakeNN{values: []float32{0, 1}}
	require.NoError(t, newToy(t, conf, first).Train())

	conf.Restore = true
	nn := &fakeNN{values: []float32{0, 1}}
	d := newToy(t, conf, nn)
	require.NoError(t, d.Train())

	assert.Equal(t, "model-30.gob", nn.restored)
	assert.Equal(t, conf.MaxIter, d.State().Step)
	assert.Equal(t, 2*conf.MaxIter, d.State().GlobalStep)
	assert.Equal(t, "model-30.gob", nn.saves[0])
	assert.Equal(t, "model-60.gob", nn.saves[len(nn.saves)-1])
	// schedules resume past the decay horizon
	assert.Equal(t, conf.FinalEpsilon, d.State().Epsilon)
}

func TestTrainRestoreWithoutCheckpoint(t *testing.T) {
	conf := toyConfig(t)
	conf.Restore = true
	d := newToy(t, conf, &fakeNN{values: []float32{0, 1}})
	assert.Error(t, d.Train())
}

func TestTrainQNet(t *testing.T) {
	conf := toyConfig(t)
	conf.MaxIter = 60
	conf.StepsPerEval = 20
	conf.BaseLR = 0.01

	nn, err := qnet.New(qnet.Config{Inputs: 2, Actions: 2, BatchSize: conf.UpdateBatch(), LearnRate: float64(conf.BaseLR)})
	require.NoError(t, err)
	defer nn.Close()

	d := newToy(t, conf, nn)
	rec := metrics.New(filepath.Join(conf.LogDir, "metrics"))
	d.SetRecorder(rec)
	require.NoError(t, d.Train())
	require.NoError(t, rec.Flush())

	filename, step, err := checkpoint.Latest(conf.LogDir)
	require.NoError(t, err)
	assert.Equal(t, 60, step)

	restored, err := qnet.New(qnet.Config{Inputs: 2, Actions: 2, BatchSize: conf.UpdateBatch(), LearnRate: 0.01})
	require.NoError(t, err)
	defer restored.Close()
	require.NoError(t, restored.Restore(filename))

	states := [][]float32{{1, 0}, {0, 1}}
	want, err := nn.Predict(states)
	require.NoError(t, err)
	got, err := restored.Predict(states)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = os.Stat(filepath.Join(conf.LogDir, "metrics", "loss.csv"))
	assert.NoError(t, err)
}

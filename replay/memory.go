// Package replay implements the experience replay memory used by the DQN learner.
package replay

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

var (
	// ErrBatchTooLarge is returned by Sample when more transitions are requested than are stored.
	ErrBatchTooLarge = errors.New("replay: batch size exceeds memory contents")
	// ErrCapacity is returned when a memory is created with a non positive capacity.
	ErrCapacity = errors.New("replay: capacity must be positive")
)

// Transition records one environment step.
type Transition struct {
	State     []float32
	Action    int
	Reward    float32
	NextState []float32
	Terminal  bool
}

// Batch is a minibatch of transitions laid out as parallel, index aligned slices.
type Batch struct {
	States     [][]float32
	Actions    []int
	Rewards    []float32
	NextStates [][]float32
	Terminals  []bool
}

// Len returns the number of transitions in the batch.
func (b Batch) Len() int { return len(b.Actions) }

// Memory is a fixed capacity ring buffer of transitions.
//
// Once full, every Append overwrites the oldest transition. It is not safe for concurrent use.
type Memory struct {
	contents []Transition
	capacity int
	oldest   int // next slot to overwrite once full

	r   *rand.Rand
	idx []int // scratch permutation for sampling without replacement
}

// New creates an empty memory holding at most capacity transitions. The seed drives sampling.
func New(capacity int, seed uint64) (*Memory, error) {
	if capacity <= 0 {
		return nil, errors.Wrapf(ErrCapacity, "got %d", capacity)
	}
	return &Memory{
		contents: make([]Transition, 0, capacity),
		capacity: capacity,
		r:        rand.New(rand.NewSource(seed)),
	}, nil
}

// Len returns the number of stored transitions.
func (m *Memory) Len() int { return len(m.contents) }

// Cap returns the capacity fixed at construction.
func (m *Memory) Cap() int { return m.capacity }

// At returns the transition stored in slot i.
func (m *Memory) At(i int) Transition { return m.contents[i] }

// Append stores t, evicting the oldest transition when the memory is full.
func (m *Memory) Append(t Transition) {
	if len(m.contents) < m.capacity {
		m.contents = append(m.contents, t)
		m.idx = append(m.idx, len(m.idx))
		return
	}
	m.contents[m.oldest] = t
	m.oldest = (m.oldest + 1) % m.capacity
}

// Sample draws batchSize distinct transitions uniformly at random.
//
// The draw is a partial Fisher-Yates shuffle over a persistent index permutation, so a call
// costs O(batchSize) and never repeats a transition within one batch.
func (m *Memory) Sample(batchSize int) (Batch, error) {
	if batchSize <= 0 {
		return Batch{}, errors.Errorf("replay: batch size must be positive, got %d", batchSize)
	}
	n := len(m.contents)
	if batchSize > n {
		return Batch{}, errors.Wrapf(ErrBatchTooLarge, "want %d, have %d", batchSize, n)
	}

	b := Batch{
		States:     make([][]float32, batchSize),
		Actions:    make([]int, batchSize),
		Rewards:    make([]float32, batchSize),
		NextStates: make([][]float32, batchSize),
		Terminals:  make([]bool, batchSize),
	}
	for i := 0; i < batchSize; i++ {
		j := i + m.r.Intn(n-i)
		m.idx[i], m.idx[j] = m.idx[j], m.idx[i]

		t := m.contents[m.idx[i]]
		b.States[i] = t.State
		b.Actions[i] = t.Action
		b.Rewards[i] = t.Reward
		b.NextStates[i] = t.NextState
		b.Terminals[i] = t.Terminal
	}
	return b, nil
}

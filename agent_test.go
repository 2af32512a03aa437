package deepq

import (
	"testing"

	"github.com/deepq/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectAction(t *testing.T) {
	a := NewAgent(&fakeNN{values: []float32{1, 3, 3}}, 3, 1)
	for i := 0; i < 10; i++ {
		action, err := a.SelectAction([]float32{0}, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, action, "ties go to the lowest action")
	}

	seen := make(map[int]int)
	for i := 0; i < 300; i++ {
		action, err := a.SelectAction([]float32{0}, 1)
		require.NoError(t, err)
		require.True(t, action >= 0 && action < 3)
		seen[action]++
	}
	assert.Len(t, seen, 3, "fully random play reaches every action")
}

func TestArenaEvaluate(t *testing.T) {
	nn := &fakeNN{values: []float32{2, 5}}
	arena := MakeArena(NewAgent(nn, 2, 1), env.NewTwoState(10, 1))

	total, steps, err := arena.Play(0)
	require.NoError(t, err)
	assert.Equal(t, float32(10), total)
	assert.Equal(t, 10, steps)

	rewards, err := arena.Evaluate(3, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{10, 10, 10}, rewards)
	assert.Empty(t, nn.updates, "evaluation never learns")
}

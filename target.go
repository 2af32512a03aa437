package deepq

import "gorgonia.org/vecf32"

// TDTargets computes the one step bootstrapped targets
//
//	reward + gamma * max_a' Q(next, a') * (1 - terminal)
//
// for every transition. nextQ holds the action values of each next state.
func TDTargets(rewards []float32, nextQ [][]float32, terminals []bool, gamma float32) []float32 {
	retVal := make([]float32, len(rewards))
	for i, r := range rewards {
		retVal[i] = r
		if !terminals[i] {
			retVal[i] += gamma * vecf32.MaxOf(nextQ[i])
		}
	}
	return retVal
}

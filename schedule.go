package deepq

import "github.com/chewxy/math32"

// PolynomialDecay moves linearly from init to final over decaySteps steps and stays at final
// afterwards.
func PolynomialDecay(init, final float32, decaySteps, step int) float32 {
	if decaySteps <= 0 || step >= decaySteps {
		return final
	}
	if step < 0 {
		step = 0
	}
	frac := 1 - float32(step)/float32(decaySteps)
	return (init-final)*frac + final
}

// StaircaseDecay scales base by rate once every decaySteps steps, never dropping below floor.
func StaircaseDecay(base, rate float32, decaySteps int, floor float32, step int) float32 {
	if decaySteps <= 0 || step < 0 {
		return math32.Max(base, floor)
	}
	stairs := float32(step / decaySteps)
	return math32.Max(base*math32.Pow(rate, stairs), floor)
}

// TrainState is the position of a training run.
//
// Step counts the iterations of the current run. GlobalStep drives the schedules and survives
// checkpoint restores, so a resumed run continues its schedules where the checkpoint left off.
type TrainState struct {
	Step         int
	GlobalStep   int
	EpisodeStart int // Step at which the current episode began

	Epsilon   float32
	LearnRate float32
	Loss      float32
}

package env

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

const (
	cpGravity      = 9.8
	cpMassCart     = 1.0
	cpMassPole     = 0.1
	cpTotalMass    = cpMassCart + cpMassPole
	cpLength       = 0.5 // half the pole's length
	cpPoleMassLen  = cpMassPole * cpLength
	cpForceMag     = 10.0
	cpTau          = 0.02 // seconds between state updates
	cpThetaLimit   = 12 * 2 * math32.Pi / 360
	cpXLimit       = 2.4
	cpObservations = 4
	cpActions      = 2
)

// CartPole balances a pole hinged on a cart moving along a frictionless track.
//
// The observation is (x, x_dot, theta, theta_dot). Action 0 pushes the cart left, action 1 pushes
// it right. Every step yields a reward of 1 and the episode ends when the pole falls past 12
// degrees, the cart leaves the track, or maxSteps is reached.
type CartPole struct {
	r        *rand.Rand
	state    [cpObservations]float32
	steps    int
	maxSteps int
	done     bool
}

// NewCartPole creates a cart pole whose episodes are cut after maxSteps steps.
func NewCartPole(maxSteps int, seed uint64) *CartPole {
	return &CartPole{
		r:        rand.New(rand.NewSource(seed)),
		maxSteps: maxSteps,
		done:     true,
	}
}

func (c *CartPole) ObservationSize() int { return cpObservations }
func (c *CartPole) ActionSpace() int     { return cpActions }
func (c *CartPole) SampleAction() int    { return c.r.Intn(cpActions) }

// Reset places the cart near the centre with a small random perturbation.
func (c *CartPole) Reset() ([]float32, error) {
	for i := range c.state {
		c.state[i] = c.r.Float32()*0.1 - 0.05
	}
	c.steps = 0
	c.done = false
	return c.observe(), nil
}

func (c *CartPole) Step(action int) ([]float32, float32, bool, error) {
	if err := checkAction(action, cpActions); err != nil {
		return nil, 0, false, err
	}
	if c.done {
		return nil, 0, false, errors.New("cartpole: step called on a finished episode")
	}

	x, xDot, theta, thetaDot := c.state[0], c.state[1], c.state[2], c.state[3]
	force := float32(-cpForceMag)
	if action == 1 {
		force = cpForceMag
	}
	cos, sin := math32.Cos(theta), math32.Sin(theta)

	temp := (force + cpPoleMassLen*thetaDot*thetaDot*sin) / cpTotalMass
	thetaAcc := (cpGravity*sin - cos*temp) / (cpLength * (4.0/3.0 - cpMassPole*cos*cos/cpTotalMass))
	xAcc := temp - cpPoleMassLen*thetaAcc*cos/cpTotalMass

	x += cpTau * xDot
	xDot += cpTau * xAcc
	theta += cpTau * thetaDot
	thetaDot += cpTau * thetaAcc
	c.state = [cpObservations]float32{x, xDot, theta, thetaDot}
	c.steps++

	c.done = x < -cpXLimit || x > cpXLimit ||
		theta < -cpThetaLimit || theta > cpThetaLimit ||
		c.steps >= c.maxSteps
	return c.observe(), 1, c.done, nil
}

func (c *CartPole) observe() []float32 {
	retVal := make([]float32, cpObservations)
	copy(retVal, c.state[:])
	return retVal
}

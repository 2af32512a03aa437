// Package qnet is a fully connected action-value network built on gorgonia.
package qnet

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ErrShape is returned when inputs do not match the network's configured shape.
var ErrShape = errors.New("qnet: shape mismatch")

var dt = tensor.Float32

// Net maps a batch of observations to a batch of action-value vectors.
//
// The training graph has a fixed batch size of Config.BatchSize. Predictions run on forward-only
// graphs, one per batch size seen, which read the training graph's parameters before every run.
type Net struct {
	Config

	train  *machine
	infer  map[int]*machine
	solver *G.AdamSolver
	lr     float64
}

// machine is one compiled graph.
type machine struct {
	g      *G.ExprGraph
	x      *G.Node
	params G.Nodes // w0, b0, w1, b1, ...
	out    *G.Node

	// training graphs only
	mask, target, loss *G.Node
	lossVal            G.Value

	vm G.VM
}

// New builds a network with freshly initialised parameters.
func New(conf Config) (*Net, error) {
	if !conf.IsValid() {
		return nil, errors.Errorf("qnet: invalid config %+v", conf)
	}
	n := &Net{
		Config: conf,
		infer:  make(map[int]*machine),
	}
	if err := n.initTrain(); err != nil {
		return nil, err
	}
	n.solver = G.NewAdamSolver(G.WithLearnRate(conf.LearnRate))
	n.lr = conf.LearnRate
	return n, nil
}

func paramName(kind string, layer int) string { return fmt.Sprintf("%s%d", kind, layer) }

// fwd wires the layers on top of m.x. Hidden layers are rectified, the output layer is linear.
func (m *machine) fwd(layers []int, batch int, init bool) error {
	g := m.g
	ones := G.NewMatrix(g, dt, G.WithShape(batch, 1), G.WithName("ones"), G.WithInit(G.Ones()))

	h := m.x
	for l := 0; l < len(layers)-1; l++ {
		wOpts := []G.NodeConsOpt{G.WithShape(layers[l], layers[l+1]), G.WithName(paramName("w", l))}
		bOpts := []G.NodeConsOpt{G.WithShape(1, layers[l+1]), G.WithName(paramName("b", l))}
		if init {
			wOpts = append(wOpts, G.WithInit(G.GlorotU(1.0)))
			bOpts = append(bOpts, G.WithInit(G.Zeroes()))
		}
		w := G.NewMatrix(g, dt, wOpts...)
		b := G.NewMatrix(g, dt, bOpts...)
		m.params = append(m.params, w, b)

		var err error
		if h, err = G.Mul(h, w); err != nil {
			return errors.Wrapf(err, "layer %d", l)
		}
		// broadcast the bias row over the batch
		bias, err := G.Mul(ones, b)
		if err != nil {
			return errors.Wrapf(err, "layer %d bias", l)
		}
		if h, err = G.Add(h, bias); err != nil {
			return errors.Wrapf(err, "layer %d", l)
		}
		if l < len(layers)-2 {
			if h, err = G.Rectify(h); err != nil {
				return errors.Wrapf(err, "layer %d", l)
			}
		}
	}
	m.out = h
	return nil
}

func (n *Net) initTrain() (err error) {
	bs := n.BatchSize
	m := &machine{g: G.NewGraph()}
	m.x = G.NewMatrix(m.g, dt, G.WithShape(bs, n.Inputs), G.WithName("x"))
	if err = m.fwd(n.layers(), bs, true); err != nil {
		return err
	}

	m.mask = G.NewMatrix(m.g, dt, G.WithShape(bs, n.Actions), G.WithName("actions"))
	m.target = G.NewMatrix(m.g, dt, G.WithShape(bs, n.Actions), G.WithName("target"))

	// only the action actually taken contributes: (target - Q(s, a)) on the mask, zero elsewhere
	var diff, sq, sum *G.Node
	if diff, err = G.Sub(m.target, m.out); err != nil {
		return errors.WithStack(err)
	}
	if diff, err = G.HadamardProd(diff, m.mask); err != nil {
		return errors.WithStack(err)
	}
	if sq, err = G.Square(diff); err != nil {
		return errors.WithStack(err)
	}
	if sum, err = G.Sum(sq); err != nil {
		return errors.WithStack(err)
	}
	if m.loss, err = G.Div(sum, G.NewConstant(float32(bs))); err != nil {
		return errors.WithStack(err)
	}
	G.Read(m.loss, &m.lossVal)

	if _, err = G.Grad(m.loss, m.params...); err != nil {
		return errors.Wrap(err, "unable to differentiate loss")
	}
	m.vm = G.NewTapeMachine(m.g, G.BindDualValues(m.params...))
	n.train = m
	return nil
}

// inferer returns the forward-only machine for batch rows, building it on first use.
func (n *Net) inferer(batch int) (*machine, error) {
	if m, ok := n.infer[batch]; ok {
		return m, nil
	}
	m := &machine{g: G.NewGraph()}
	m.x = G.NewMatrix(m.g, dt, G.WithShape(batch, n.Inputs), G.WithName("x"))
	if err := m.fwd(n.layers(), batch, false); err != nil {
		return nil, err
	}
	m.vm = G.NewTapeMachine(m.g)
	n.infer[batch] = m
	return m, nil
}

// setLearnRate changes the Adam step size in place. The moment estimates carry over.
func (n *Net) setLearnRate(lr float64) {
	G.WithLearnRate(lr)(n.solver)
	n.lr = lr
}

func (n *Net) flatten(states [][]float32) ([]float32, error) {
	retVal := make([]float32, 0, len(states)*n.Inputs)
	for i, s := range states {
		if len(s) != n.Inputs {
			return nil, errors.Wrapf(ErrShape, "state %d has %d features, want %d", i, len(s), n.Inputs)
		}
		retVal = append(retVal, s...)
	}
	return retVal, nil
}

// Predict returns the action values of every state.
func (n *Net) Predict(states [][]float32) ([][]float32, error) {
	if len(states) == 0 {
		return nil, errors.Wrap(ErrShape, "empty batch")
	}
	backing, err := n.flatten(states)
	if err != nil {
		return nil, err
	}
	m, err := n.inferer(len(states))
	if err != nil {
		return nil, err
	}
	defer m.vm.Reset()

	if err = G.Let(m.x, tensor.New(tensor.WithShape(len(states), n.Inputs), tensor.WithBacking(backing))); err != nil {
		return nil, errors.WithStack(err)
	}
	for i, p := range m.params {
		if err = G.Let(p, n.train.params[i].Value()); err != nil {
			return nil, errors.Wrapf(err, "binding %s", p.Name())
		}
	}
	if err = m.vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "forward pass")
	}

	data := m.out.Value().Data().([]float32)
	retVal := make([][]float32, len(states))
	for i := range retVal {
		retVal[i] = make([]float32, n.Actions)
		copy(retVal[i], data[i*n.Actions:(i+1)*n.Actions])
	}
	return retVal, nil
}

// Update takes one Adam step with step size lr on the mean squared error between targets and the
// predicted values of the taken actions, and returns that error as measured before the step.
func (n *Net) Update(states [][]float32, actions []int, targets []float32, lr float32) (float32, error) {
	bs := n.BatchSize
	if len(states) != bs || len(actions) != bs || len(targets) != bs {
		return 0, errors.Wrapf(ErrShape, "update wants %d rows, got %d states, %d actions, %d targets",
			bs, len(states), len(actions), len(targets))
	}
	backing, err := n.flatten(states)
	if err != nil {
		return 0, err
	}
	mask := make([]float32, bs*n.Actions)
	tgt := make([]float32, bs*n.Actions)
	for i, a := range actions {
		if a < 0 || a >= n.Actions {
			return 0, errors.Errorf("qnet: action %d out of range [0, %d)", a, n.Actions)
		}
		mask[i*n.Actions+a] = 1
		tgt[i*n.Actions+a] = targets[i]
	}

	m := n.train
	defer m.vm.Reset()
	if err = G.Let(m.x, tensor.New(tensor.WithShape(bs, n.Inputs), tensor.WithBacking(backing))); err != nil {
		return 0, errors.WithStack(err)
	}
	if err = G.Let(m.mask, tensor.New(tensor.WithShape(bs, n.Actions), tensor.WithBacking(mask))); err != nil {
		return 0, errors.WithStack(err)
	}
	if err = G.Let(m.target, tensor.New(tensor.WithShape(bs, n.Actions), tensor.WithBacking(tgt))); err != nil {
		return 0, errors.WithStack(err)
	}
	if float64(lr) != n.lr {
		n.setLearnRate(float64(lr))
	}

	if err = m.vm.RunAll(); err != nil {
		return 0, errors.Wrap(err, "training pass")
	}
	if err = n.solver.Step(G.NodesToValueGrads(m.params)); err != nil {
		return 0, errors.Wrap(err, "solver step")
	}
	return m.lossVal.Data().(float32), nil
}

// Close releases every compiled graph.
func (n *Net) Close() error {
	var errs error
	if err := n.train.vm.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	for _, m := range n.infer {
		if err := m.vm.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

package qnet

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

func init() {
	gob.Register(&tensor.Dense{})
}

// Save writes the network parameters to filename, keyed by parameter name.
func (n *Net) Save(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	weights := make(map[string]*tensor.Dense, len(n.train.params))
	for _, p := range n.train.params {
		weights[p.Name()] = p.Value().(*tensor.Dense)
	}
	enc := gob.NewEncoder(f)
	if err = enc.Encode(weights); err != nil {
		return errors.Wrapf(err, "encoding %s", filename)
	}
	return nil
}

// Restore loads parameters written by Save. Every parameter must be present with the same shape.
func (n *Net) Restore(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	var weights map[string]*tensor.Dense
	dec := gob.NewDecoder(f)
	if err = dec.Decode(&weights); err != nil {
		return errors.Wrapf(err, "decoding %s", filename)
	}

	for _, p := range n.train.params {
		src, ok := weights[p.Name()]
		if !ok {
			return errors.Errorf("qnet: %s has no parameter %q", filename, p.Name())
		}
		dst := p.Value().(*tensor.Dense)
		if !dst.Shape().Eq(src.Shape()) {
			return errors.Wrapf(ErrShape, "%s is %v in %s, network wants %v", p.Name(), src.Shape(), filename, dst.Shape())
		}
		if err = tensor.Copy(dst, src); err != nil {
			return errors.Wrapf(err, "restoring %s", p.Name())
		}
	}
	return nil
}

package qnet

import (
	"fmt"
	"io"
	"strconv"

	"github.com/awalterschulze/gographviz"
	"github.com/pkg/errors"
)

// WriteDot writes the training graph in graphviz dot format, labelled with the layer widths.
func (n *Net) WriteDot(w io.Writer) error {
	ast, err := gographviz.ParseString(n.train.g.ToDot())
	if err != nil {
		return errors.Wrap(err, "parsing graph")
	}
	graph := gographviz.NewGraph()
	if err = gographviz.Analyse(ast, graph); err != nil {
		return errors.Wrap(err, "analysing graph")
	}
	label := strconv.Quote(fmt.Sprintf("Q network %v", n.layers()))
	if err = graph.AddAttr(graph.Name, "label", label); err != nil {
		return errors.WithStack(err)
	}
	_, err = io.WriteString(w, graph.String())
	return err
}

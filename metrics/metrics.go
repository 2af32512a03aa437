// Package metrics records scalar training curves keyed by step.
package metrics

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Point is one recorded value.
type Point struct {
	Step  int
	Value float64
}

// Recorder accumulates named series in memory and writes them under a directory.
// The zero value is not usable; use New.
type Recorder struct {
	dir    string
	series map[string][]Point
}

// New creates a recorder writing into dir. An empty dir keeps everything in memory.
func New(dir string) *Recorder {
	return &Recorder{
		dir:    dir,
		series: make(map[string][]Point),
	}
}

// Record appends value at step to the series tag.
func (r *Recorder) Record(tag string, step int, value float64) {
	r.series[tag] = append(r.series[tag], Point{Step: step, Value: value})
}

// Series returns the points recorded under tag.
func (r *Recorder) Series(tag string) []Point { return r.series[tag] }

// Tags lists the recorded series in sorted order.
func (r *Recorder) Tags() []string {
	retVal := make([]string, 0, len(r.series))
	for k := range r.series {
		retVal = append(retVal, k)
	}
	sort.Strings(retVal)
	return retVal
}

// Flush writes every series to <dir>/<tag>.csv.
func (r *Recorder) Flush() error {
	if r.dir == "" {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return errors.WithStack(err)
	}
	var errs error
	for _, tag := range r.Tags() {
		if err := r.writeCSV(tag); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func (r *Recorder) writeCSV(tag string) error {
	f, err := os.Create(filepath.Join(r.dir, filename(tag)+".csv"))
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err = w.Write([]string{"step", tag}); err != nil {
		return errors.WithStack(err)
	}
	for _, p := range r.series[tag] {
		if err = w.Write([]string{strconv.Itoa(p.Step), strconv.FormatFloat(p.Value, 'g', -1, 64)}); err != nil {
			return errors.WithStack(err)
		}
	}
	w.Flush()
	return errors.WithStack(w.Error())
}

// Plot renders the series tag as a line chart in <dir>/<tag>.png. It does nothing for an
// in-memory recorder.
func (r *Recorder) Plot(tag string) error {
	pts, ok := r.series[tag]
	if !ok {
		return errors.Errorf("metrics: no series %q", tag)
	}
	if r.dir == "" {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return errors.WithStack(err)
	}
	xys := make(plotter.XYs, len(pts))
	for i, p := range pts {
		xys[i].X = float64(p.Step)
		xys[i].Y = p.Value
	}

	p := plot.New()
	p.Title.Text = tag
	p.X.Label.Text = "step"
	p.Y.Label.Text = tag
	if err := plotutil.AddLines(p, tag, xys); err != nil {
		return errors.Wrapf(err, "plotting %s", tag)
	}
	return errors.WithStack(p.Save(8*vg.Inch, 4*vg.Inch, filepath.Join(r.dir, filename(tag)+".png")))
}

// filename turns a tag into a safe file name.
func filename(tag string) string {
	b := []byte(tag)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}

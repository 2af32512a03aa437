// Package checkpoint manages the model checkpoints written during training.
//
// Checkpoints live in <logdir>/checkpoints as model-<step>.gob. A pointer file named "checkpoint"
// holds the file name of the most recent one.
package checkpoint

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ErrNoCheckpoint is returned by Latest when nothing has been saved yet.
var ErrNoCheckpoint = errors.New("checkpoint: no checkpoint found")

const pointerFile = "checkpoint"

var nameRe = regexp.MustCompile(`^model-(\d+)\.gob$`)

// Saver is anything that can persist itself to a file.
type Saver interface {
	Save(filename string) error
}

// Manager writes numbered checkpoints into a directory and prunes the oldest ones.
type Manager struct {
	dir  string
	keep int // 0 keeps everything
}

// Dir returns the checkpoint directory under logDir.
func Dir(logDir string) string { return filepath.Join(logDir, "checkpoints") }

// NewManager creates the checkpoint directory under logDir if needed.
func NewManager(logDir string, keep int) (*Manager, error) {
	dir := Dir(logDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.WithStack(err)
	}
	return &Manager{dir: dir, keep: keep}, nil
}

// Save writes s as the checkpoint for step and makes it the latest one.
func (m *Manager) Save(s Saver, step int) (string, error) {
	name := fmt.Sprintf("model-%d.gob", step)
	filename := filepath.Join(m.dir, name)
	if err := s.Save(filename); err != nil {
		return "", errors.Wrapf(err, "saving step %d", step)
	}
	if err := ioutil.WriteFile(filepath.Join(m.dir, pointerFile), []byte(name+"\n"), 0644); err != nil {
		return "", errors.WithStack(err)
	}
	return filename, m.prune()
}

func (m *Manager) prune() error {
	if m.keep <= 0 {
		return nil
	}
	steps, err := list(m.dir)
	if err != nil {
		return err
	}
	if len(steps) <= m.keep {
		return nil
	}
	var errs error
	for _, step := range steps[:len(steps)-m.keep] {
		if err := os.Remove(filepath.Join(m.dir, fmt.Sprintf("model-%d.gob", step))); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

// list returns the steps of the checkpoints in dir in ascending order.
func list(dir string) ([]int, error) {
	infos, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var steps []int
	for _, info := range infos {
		m := nameRe.FindStringSubmatch(info.Name())
		if m == nil {
			continue
		}
		step, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		steps = append(steps, step)
	}
	sort.Ints(steps)
	return steps, nil
}

// Latest returns the path and step of the most recent checkpoint under logDir.
//
// The pointer file wins. Without it the highest numbered checkpoint is used.
func Latest(logDir string) (filename string, step int, err error) {
	dir := Dir(logDir)
	if b, err := ioutil.ReadFile(filepath.Join(dir, pointerFile)); err == nil {
		name := strings.TrimSpace(string(b))
		if m := nameRe.FindStringSubmatch(name); m != nil {
			if _, statErr := os.Stat(filepath.Join(dir, name)); statErr == nil {
				step, _ = strconv.Atoi(m[1])
				return filepath.Join(dir, name), step, nil
			}
		}
	}

	steps, err := list(dir)
	if err != nil && !os.IsNotExist(errors.Cause(err)) {
		return "", 0, err
	}
	if len(steps) == 0 {
		return "", 0, errors.Wrapf(ErrNoCheckpoint, "in %s", dir)
	}
	step = steps[len(steps)-1]
	return filepath.Join(dir, fmt.Sprintf("model-%d.gob", step)), step, nil
}

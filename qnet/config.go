package qnet

// Config configures the Q network
type Config struct {
	Inputs    int     `json:"inputs"`     // observation width
	Hidden    []int   `json:"hidden"`     // hidden layer widths, empty for a linear network
	Actions   int     `json:"actions"`    // action space
	BatchSize int     `json:"batch_size"` // rows per Update
	LearnRate float64 `json:"learn_rate"` // initial Adam step size
}

// DefaultConf is a linear Q network trained on minibatches of 32.
func DefaultConf(inputs, actions int) Config {
	return Config{
		Inputs:    inputs,
		Actions:   actions,
		BatchSize: 32,
		LearnRate: 1e-3,
	}
}

func (conf Config) IsValid() bool {
	for _, h := range conf.Hidden {
		if h < 1 {
			return false
		}
	}
	return conf.Inputs >= 1 &&
		conf.Actions >= 1 &&
		conf.BatchSize >= 1 &&
		conf.LearnRate > 0
}

// layers returns the widths of every layer, inputs first.
func (conf Config) layers() []int {
	retVal := make([]int, 0, len(conf.Hidden)+2)
	retVal = append(retVal, conf.Inputs)
	retVal = append(retVal, conf.Hidden...)
	return append(retVal, conf.Actions)
}

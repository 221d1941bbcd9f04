package optimize

import "strings"

// Algorithm selects the update rule.
type Algorithm string

const (
	BPROP Algorithm = "bprop"
	RPROP Algorithm = "rprop"
)

// ParseAlgorithm parses an algorithm name, case insensitively.
func ParseAlgorithm(s string) (Algorithm, bool) {
	switch Algorithm(strings.ToLower(s)) {
	case BPROP:
		return BPROP, true
	case RPROP:
		return RPROP, true
	}
	return "", false
}

// Factors are the RPROP multipliers of the update magnitude, by the sign of gradient agreement.
type Factors struct {
	Decrease float64 // signs disagree
	Keep     float64 // one of the gradients is zero
	Increase float64 // signs agree
}

// Config configures an optimizer run.
type Config struct {
	Algorithm         Algorithm
	Updates           int // number of iterations
	MinibatchSize     int // 0 uses every row
	MinibatchInterval int // iterations between new minibatches

	LearningRate float64 // BPROP

	Factors     Factors // RPROP
	InitialRate float64
	MinRate     float64
	MaxRate     float64

	MaxNumericFailures int // consecutive skipped iterations before giving up
}

func DefaultConf() Config {
	return Config{
		Algorithm:         RPROP,
		Updates:           10000,
		MinibatchSize:     100,
		MinibatchInterval: 10,

		LearningRate: 0.1,

		Factors:     Factors{Decrease: 0.5, Keep: 1.0, Increase: 1.2},
		InitialRate: 0.001,
		MinRate:     1e-6,
		MaxRate:     50,

		MaxNumericFailures: 10,
	}
}

func (conf Config) IsValid() bool {
	return (conf.Algorithm == BPROP || conf.Algorithm == RPROP) &&
		conf.Updates >= 0 &&
		conf.MinibatchSize >= 0 &&
		conf.MinibatchInterval >= 1 &&
		conf.LearningRate > 0 &&
		conf.Factors.Decrease > 0 && conf.Factors.Decrease < 1 &&
		conf.Factors.Keep > 0 &&
		conf.Factors.Increase > 1 &&
		conf.MinRate > 0 &&
		conf.MaxRate >= conf.MinRate &&
		conf.InitialRate >= conf.MinRate && conf.InitialRate <= conf.MaxRate &&
		conf.MaxNumericFailures >= 0
}

package optimize

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
)

// Statistics is a trace of the evaluations of a Monitor.
type Statistics struct {
	Iterations []int
	Errors     []float64
	Skipped    []int
}

func makeStatistics() Statistics {
	return Statistics{
		Iterations: make([]int, 0, 64),
		Errors:     make([]float64, 0, 64),
		Skipped:    make([]int, 0, 64),
	}
}

func (s *Statistics) update(p Progress, err float64) {
	s.Iterations = append(s.Iterations, p.Iteration)
	s.Errors = append(s.Errors, err)
	s.Skipped = append(s.Skipped, p.Skipped)
}

// Len is the number of recorded evaluations.
func (s *Statistics) Len() int { return len(s.Iterations) }

// Write writes the trace as CSV, with a header.
func (s *Statistics) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"iteration", "error", "skipped"}); err != nil {
		return err
	}
	records := make([][]string, 0, len(s.Iterations))
	for i, it := range s.Iterations {
		records = append(records, []string{
			strconv.Itoa(it),
			strconv.FormatFloat(s.Errors[i], 'f', 6, 64),
			strconv.Itoa(s.Skipped[i]),
		})
	}
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// Dump writes the trace into filename.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.Write(f)
}

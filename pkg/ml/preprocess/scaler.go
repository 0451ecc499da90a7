package preprocess

import (
	"fmt"
	"math"

	"github.com/synaptica-ai/cardiorisk/pkg/ml"
)

// StandardScaler centres each column on its mean and divides by its population
// standard deviation. Columns with zero spread keep a unit divisor.
type StandardScaler struct {
	Mean   []float64 `json:"mean"`
	Stddev []float64 `json:"stddev"`
}

func (s *StandardScaler) Fit(samples [][]float64) error {
	if len(samples) == 0 {
		return ml.ErrEmptyDataset
	}
	dim := len(samples[0])
	mean := make([]float64, dim)
	for _, row := range samples {
		if len(row) != dim {
			return fmt.Errorf("%w: row has %d columns, want %d", ml.ErrShapeMismatch, len(row), dim)
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(samples))
	for j := range mean {
		mean[j] /= n
	}
	std := make([]float64, dim)
	for _, row := range samples {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		if std[j] == 0 {
			std[j] = 1
		}
	}
	s.Mean = mean
	s.Stddev = std
	return nil
}

func (s *StandardScaler) TransformRow(row []float64) ([]float64, error) {
	if len(s.Mean) == 0 {
		return nil, ml.ErrNotFitted
	}
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("%w: got %d columns, scaler fitted on %d", ml.ErrShapeMismatch, len(row), len(s.Mean))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Stddev[j]
	}
	return out, nil
}

func (s *StandardScaler) Transform(samples [][]float64) ([][]float64, error) {
	out := make([][]float64, len(samples))
	for i, row := range samples {
		scaled, err := s.TransformRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}

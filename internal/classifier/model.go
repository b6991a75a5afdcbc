package classifier

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidFeatures is returned by Predict for NaN or infinite inputs.
var ErrInvalidFeatures = errors.New("features must be finite numbers")

// TrainOptions controls gradient descent.
type TrainOptions struct {
	Iterations   int
	LearningRate float64
	L2           float64
}

// DefaultTrainOptions returns the settings used when none are configured.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Iterations:   1000,
		LearningRate: 0.5,
		L2:           0.01,
	}
}

// Model is a fitted multinomial logistic regression.
type Model struct {
	classes []string
	mean    Features
	scale   Features
	weights []Features
	bias    []float64
}

// Train fits a model to ds.
func Train(ds *Dataset, opts TrainOptions) (*Model, error) {
	if ds == nil || len(ds.Samples) == 0 {
		return nil, errors.New("cannot train on an empty dataset")
	}
	if opts.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", opts.Iterations)
	}
	if opts.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %g", opts.LearningRate)
	}

	k := len(ds.Classes)
	n := float64(len(ds.Samples))

	m := &Model{
		classes: append([]string(nil), ds.Classes...),
		weights: make([]Features, k),
		bias:    make([]float64, k),
	}

	for _, s := range ds.Samples {
		for j := range s.Features {
			m.mean[j] += s.Features[j]
		}
	}
	for j := range m.mean {
		m.mean[j] /= n
	}
	for _, s := range ds.Samples {
		for j := range s.Features {
			d := s.Features[j] - m.mean[j]
			m.scale[j] += d * d
		}
	}
	for j := range m.scale {
		m.scale[j] = math.Sqrt(m.scale[j] / n)
		if m.scale[j] == 0 {
			m.scale[j] = 1
		}
	}

	xs := make([]Features, len(ds.Samples))
	for i, s := range ds.Samples {
		xs[i] = m.standardize(s.Features)
	}

	gradW := make([]Features, k)
	gradB := make([]float64, k)
	probs := make([]float64, k)

	for iter := 0; iter < opts.Iterations; iter++ {
		for c := 0; c < k; c++ {
			gradW[c] = Features{}
			gradB[c] = 0
		}

		for i, x := range xs {
			m.softmax(x, probs)
			for c := 0; c < k; c++ {
				d := probs[c]
				if ds.Samples[i].Label == c {
					d -= 1
				}
				for j := range x {
					gradW[c][j] += d * x[j]
				}
				gradB[c] += d
			}
		}

		for c := 0; c < k; c++ {
			for j := range m.weights[c] {
				m.weights[c][j] -= opts.LearningRate * (gradW[c][j]/n + opts.L2*m.weights[c][j])
			}
			m.bias[c] -= opts.LearningRate * gradB[c] / n
		}
	}

	return m, nil
}

// Classes returns the label names the model can predict.
func (m *Model) Classes() []string {
	return append([]string(nil), m.classes...)
}

// Predict returns the most probable label for f.
func (m *Model) Predict(f Features) (string, error) {
	for _, v := range f {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", ErrInvalidFeatures
		}
	}

	probs := make([]float64, len(m.classes))
	m.softmax(m.standardize(f), probs)

	best := 0
	for c := 1; c < len(probs); c++ {
		if probs[c] > probs[best] {
			best = c
		}
	}
	return m.classes[best], nil
}

// Accuracy returns the fraction of ds the model labels correctly.
// Labels are compared by name, so ds may order its classes differently.
func (m *Model) Accuracy(ds *Dataset) float64 {
	if ds == nil || len(ds.Samples) == 0 {
		return 0
	}
	correct := 0
	for _, s := range ds.Samples {
		got, err := m.Predict(s.Features)
		if err == nil && got == ds.Classes[s.Label] {
			correct++
		}
	}
	return float64(correct) / float64(len(ds.Samples))
}

func (m *Model) standardize(f Features) Features {
	var x Features
	for j := range f {
		x[j] = (f[j] - m.mean[j]) / m.scale[j]
	}
	return x
}

// softmax writes class probabilities for the standardized vector x into out.
func (m *Model) softmax(x Features, out []float64) {
	maxZ := math.Inf(-1)
	for c := range m.weights {
		z := m.bias[c]
		for j := range x {
			z += m.weights[c][j] * x[j]
		}
		out[c] = z
		if z > maxZ {
			maxZ = z
		}
	}

	var sum float64
	for c := range out {
		out[c] = math.Exp(out[c] - maxZ)
		sum += out[c]
	}
	for c := range out {
		out[c] /= sum
	}
}

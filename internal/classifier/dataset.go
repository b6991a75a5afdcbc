package classifier

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// NumFeatures is the number of measurements per sample.
const NumFeatures = 4

// FeatureNames lists the measurements in Features order.
var FeatureNames = [NumFeatures]string{"sepal_length", "sepal_width", "petal_length", "petal_width"}

//go:embed iris.csv
var irisCSV []byte

// Features is one measurement vector in FeatureNames order.
type Features [NumFeatures]float64

// Sample is a labeled feature vector. Label indexes Dataset.Classes.
type Sample struct {
	Features Features
	Label    int
}

// Dataset is a set of labeled samples.
type Dataset struct {
	// Classes holds label names in order of first appearance.
	Classes []string
	Samples []Sample
}

// Iris returns the bundled iris dataset.
func Iris() (*Dataset, error) {
	return LoadCSV(bytes.NewReader(irisCSV))
}

// LoadFile reads a dataset from a CSV file. See LoadCSV.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// LoadCSV parses a dataset. The first row is a header and is skipped; every
// following row must hold NumFeatures numbers and a non-empty label.
func LoadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = NumFeatures + 1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}

	ds := &Dataset{}
	index := make(map[string]int)

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset: %w", err)
		}

		var s Sample
		for i := 0; i < NumFeatures; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s is not numeric: %q", line, FeatureNames[i], record[i])
			}
			s.Features[i] = v
		}

		name := strings.TrimSpace(record[NumFeatures])
		if name == "" {
			return nil, fmt.Errorf("line %d: empty label", line)
		}
		label, ok := index[name]
		if !ok {
			label = len(ds.Classes)
			index[name] = label
			ds.Classes = append(ds.Classes, name)
		}
		s.Label = label

		ds.Samples = append(ds.Samples, s)
	}

	if len(ds.Samples) == 0 {
		return nil, errors.New("dataset has no samples")
	}
	if len(ds.Classes) < 2 {
		return nil, fmt.Errorf("dataset needs at least 2 classes, got %d", len(ds.Classes))
	}
	return ds, nil
}

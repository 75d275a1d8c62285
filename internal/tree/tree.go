// Package tree models the visit export of the metadata server: an ordered
// list of samples, each holding datasets, each holding experiments.
package tree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Keys the walker understands. Everything else is opaque payload.
const (
	SampleKeyField      = "name"
	SampleChildrenKey   = "experimentDTO"
	DatasetKeyField     = "id"
	DatasetChildrenKey  = "experimentList"
	ExperimentKeyField  = "expno"
	EnvelopeResponseKey = "api_response"
)

// ErrInvalidTree marks documents that do not match the export schema.
var ErrInvalidTree = errors.New("invalid metadata tree")

// Tree is the root of an export.
type Tree struct {
	Samples []Sample
}

// Sample is a top-level node.
type Sample struct {
	Name     string
	Datasets []Dataset
	// Fields is the sample object without its datasets.
	Fields Payload
}

// Dataset belongs to a sample.
type Dataset struct {
	ID          string
	Experiments []Experiment
	// Fields is the dataset object without its experiments.
	Fields Payload
}

// Experiment is a leaf node; Fields is the whole object.
type Experiment struct {
	Expno  string
	Fields Payload
}

// Counts reports the number of nodes at each level.
func (t Tree) Counts() (samples, datasets, experiments int) {
	samples = len(t.Samples)
	for _, s := range t.Samples {
		datasets += len(s.Datasets)
		for _, d := range s.Datasets {
			experiments += len(d.Experiments)
		}
	}
	return samples, datasets, experiments
}

// Load reads and parses the export file at path.
func Load(path string) (Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tree{}, fmt.Errorf("failed to read metadata file: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return Tree{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes an export. It accepts either a bare array of samples or the
// envelope written by the export step, whose api_response holds the array.
func Parse(data []byte) (Tree, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Tree{}, fmt.Errorf("%w: empty document", ErrInvalidTree)
	}

	if trimmed[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return Tree{}, fmt.Errorf("%w: %v", ErrInvalidTree, err)
		}
		inner, ok := envelope[EnvelopeResponseKey]
		if !ok {
			return Tree{}, fmt.Errorf("%w: object without %q", ErrInvalidTree, EnvelopeResponseKey)
		}
		trimmed = bytes.TrimSpace(inner)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return Tree{}, fmt.Errorf("%w: samples: %v", ErrInvalidTree, err)
	}

	t := Tree{Samples: make([]Sample, 0, len(raws))}
	for i, raw := range raws {
		s, err := parseSample(raw)
		if err != nil {
			return Tree{}, fmt.Errorf("%w: sample %d: %v", ErrInvalidTree, i, err)
		}
		t.Samples = append(t.Samples, s)
	}
	return t, nil
}

func parseSample(raw json.RawMessage) (Sample, error) {
	var fields Payload
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Sample{}, err
	}
	name, err := fields.Scalar(SampleKeyField)
	if err != nil {
		return Sample{}, err
	}

	s := Sample{Name: name, Fields: fields.Without(SampleChildrenKey)}
	children, err := childList(fields, SampleChildrenKey)
	if err != nil {
		return Sample{}, err
	}
	for j, child := range children {
		d, err := parseDataset(child)
		if err != nil {
			return Sample{}, fmt.Errorf("dataset %d: %w", j, err)
		}
		s.Datasets = append(s.Datasets, d)
	}
	return s, nil
}

func parseDataset(raw json.RawMessage) (Dataset, error) {
	var fields Payload
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Dataset{}, err
	}
	id, err := fields.Scalar(DatasetKeyField)
	if err != nil {
		return Dataset{}, err
	}

	d := Dataset{ID: id, Fields: fields.Without(DatasetChildrenKey)}
	children, err := childList(fields, DatasetChildrenKey)
	if err != nil {
		return Dataset{}, err
	}
	for k, child := range children {
		e, err := parseExperiment(child)
		if err != nil {
			return Dataset{}, fmt.Errorf("experiment %d: %w", k, err)
		}
		d.Experiments = append(d.Experiments, e)
	}
	return d, nil
}

func parseExperiment(raw json.RawMessage) (Experiment, error) {
	var fields Payload
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Experiment{}, err
	}
	expno, err := fields.Scalar(ExperimentKeyField)
	if err != nil {
		return Experiment{}, err
	}
	return Experiment{Expno: expno, Fields: fields}, nil
}

// childList decodes the child array under key; absent and null mean no children.
func childList(fields Payload, key string) ([]json.RawMessage, error) {
	raw, ok := fields.Get(key)
	if !ok {
		return nil, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var children []json.RawMessage
	if err := json.Unmarshal(raw, &children); err != nil {
		return nil, fmt.Errorf("%q: %w", key, err)
	}
	return children, nil
}

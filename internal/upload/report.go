package upload

import (
	"fmt"

	"nmrcerm/internal/aria"
	"nmrcerm/internal/tree"
)

// NodeType tags report entries with the tree level they came from.
type NodeType string

const (
	NodeSample     NodeType = "sample"
	NodeDataset    NodeType = "dataset"
	NodeExperiment NodeType = "experiment"
)

// Node identifies one tree node by its type and the keys of its ancestors.
type Node struct {
	Type       NodeType
	SampleName string
	DatasetID  string
	Expno      string
}

// String names the node in failure messages.
func (n Node) String() string {
	switch n.Type {
	case NodeSample:
		return fmt.Sprintf("sample %q", n.SampleName)
	case NodeDataset:
		return fmt.Sprintf("dataset %q of sample %q", n.DatasetID, n.SampleName)
	case NodeExperiment:
		return fmt.Sprintf("experiment %q of dataset %q", n.Expno, n.DatasetID)
	default:
		return string(n.Type)
	}
}

// RecordDetail describes a created record and the field attached to it.
type RecordDetail struct {
	Type       NodeType `json:"type" yaml:"type"`
	RecordID   aria.ID  `json:"record_id" yaml:"record_id"`
	FieldID    aria.ID  `json:"field_id" yaml:"field_id"`
	Label      string   `json:"label" yaml:"label"`
	SampleName string   `json:"sample_name,omitempty" yaml:"sample_name,omitempty"`
	DatasetID  string   `json:"dataset_id,omitempty" yaml:"dataset_id,omitempty"`
	Expno      string   `json:"expno,omitempty" yaml:"expno,omitempty"`
}

// FieldDetail describes a created field and the data it carries.
type FieldDetail struct {
	Type        NodeType     `json:"type" yaml:"type"`
	FieldID     aria.ID      `json:"field_id" yaml:"field_id"`
	RecordID    aria.ID      `json:"record_id" yaml:"record_id"`
	FieldType   string       `json:"field_type" yaml:"field_type"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Data        tree.Payload `json:"data" yaml:"data"`
}

// Report is the outcome of one upload run.
type Report struct {
	Bucket           aria.Bucket    `json:"bucket" yaml:"bucket"`
	RecordsCreated   int            `json:"records_created" yaml:"records_created"`
	FieldsCreated    int            `json:"fields_created" yaml:"fields_created"`
	RecordsDetail    []RecordDetail `json:"records_detail" yaml:"records_detail"`
	FieldsDetail     []FieldDetail  `json:"fields_detail" yaml:"fields_detail"`
	FailedOperations []string       `json:"failed_operations" yaml:"failed_operations"`
}

// ReportBuilder accumulates node outcomes during a walk.
type ReportBuilder struct {
	bucket   aria.Bucket
	records  []RecordDetail
	fields   []FieldDetail
	failures []string
}

// NewReportBuilder starts an empty report for bucket.
func NewReportBuilder(bucket aria.Bucket) *ReportBuilder {
	return &ReportBuilder{bucket: bucket}
}

// Created adds the record and field entries of a node whose record and
// field were both created.
func (b *ReportBuilder) Created(n Node, record aria.Record, field aria.Field, data tree.Payload) {
	b.records = append(b.records, RecordDetail{
		Type:       n.Type,
		RecordID:   record.ID,
		FieldID:    field.ID,
		Label:      record.Label,
		SampleName: n.SampleName,
		DatasetID:  n.DatasetID,
		Expno:      n.Expno,
	})
	b.fields = append(b.fields, FieldDetail{
		Type:        n.Type,
		FieldID:     field.ID,
		RecordID:    record.ID,
		FieldType:   field.FieldType,
		Description: field.Description,
		Data:        data,
	})
}

// Failed records a node-local failure. The node gets no record or field entry.
func (b *ReportBuilder) Failed(n Node, cause error) {
	b.failures = append(b.failures, fmt.Sprintf("%s: %v", n, cause))
}

// Finalize returns the report. Later calls on the builder do not affect it.
func (b *ReportBuilder) Finalize() *Report {
	r := &Report{
		Bucket:           b.bucket,
		RecordsCreated:   len(b.records),
		FieldsCreated:    len(b.fields),
		RecordsDetail:    make([]RecordDetail, len(b.records)),
		FieldsDetail:     make([]FieldDetail, len(b.fields)),
		FailedOperations: make([]string, len(b.failures)),
	}
	copy(r.RecordsDetail, b.records)
	copy(r.FieldsDetail, b.fields)
	copy(r.FailedOperations, b.failures)
	return r
}

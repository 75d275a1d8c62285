// Package upload walks an exported visit tree and mirrors every node into the
// registry as a record with one field, collecting a report of the run.
package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"nmrcerm/internal/aria"
	"nmrcerm/internal/logging"
	"nmrcerm/internal/retry"
	"nmrcerm/internal/telemetry"
	"nmrcerm/internal/tree"
)

// Names used for every record and field created by the walker.
const (
	RecordSchema = "TestSchema"
	FieldType    = "TestFieldType"
)

// RecordWriter creates records and fields in a bucket.
type RecordWriter interface {
	CreateRecord(ctx context.Context, bucketID aria.ID, schema, label string) (aria.Record, error)
	CreateField(ctx context.Context, recordID aria.ID, fieldType string, data any, description string) (aria.Field, error)
}

// Pacing is the pause after each field call, per tree level.
type Pacing struct {
	Sample     time.Duration
	Dataset    time.Duration
	Experiment time.Duration
}

// DefaultPacing keeps the walker under the registry's rate limits.
var DefaultPacing = Pacing{
	Sample:     500 * time.Millisecond,
	Dataset:    500 * time.Millisecond,
	Experiment: 300 * time.Millisecond,
}

// Walker uploads a tree node by node, sequentially.
type Walker struct {
	writer       RecordWriter
	pacing       Pacing
	recordPolicy retry.Policy
	fieldPolicy  retry.Policy
	sleep        retry.SleepFunc
	newToken     func() string
}

// WalkerOption customizes a Walker.
type WalkerOption func(*Walker)

// WithPacing overrides DefaultPacing.
func WithPacing(p Pacing) WalkerOption {
	return func(w *Walker) {
		w.pacing = p
	}
}

// WithPolicies overrides the record and field retry policies.
func WithPolicies(record, field retry.Policy) WalkerOption {
	return func(w *Walker) {
		w.recordPolicy = record
		w.fieldPolicy = field
	}
}

// WithSleep replaces both the pauses and the retry waits.
func WithSleep(fn retry.SleepFunc) WalkerOption {
	return func(w *Walker) {
		w.sleep = fn
	}
}

// WithTokenGenerator replaces the random per-sample label token.
func WithTokenGenerator(fn func() string) WalkerOption {
	return func(w *Walker) {
		w.newToken = fn
	}
}

// NewWalker creates a walker writing through writer.
func NewWalker(writer RecordWriter, opts ...WalkerOption) *Walker {
	w := &Walker{
		writer:       writer,
		pacing:       DefaultPacing,
		recordPolicy: retry.RecordPolicy,
		fieldPolicy:  retry.FieldPolicy,
		sleep:        retry.Sleep,
		newToken:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// walk holds the state of one run.
type walk struct {
	*Walker
	bucket aria.Bucket
	report *ReportBuilder
}

// Walk uploads t into bucket in document order. Node failures are recorded
// in the report; only context cancellation aborts the walk.
func (w *Walker) Walk(ctx context.Context, bucket aria.Bucket, t tree.Tree) (rep *Report, err error) {
	ctx, span := telemetry.StartSpan(ctx, "upload.walk")
	samples, datasets, experiments := t.Counts()
	span.SetAttributes(
		attribute.String("aria.bucket_id", string(bucket.ID)),
		attribute.Int("upload.samples", samples),
		attribute.Int("upload.datasets", datasets),
		attribute.Int("upload.experiments", experiments),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	run := &walk{Walker: w, bucket: bucket, report: NewReportBuilder(bucket)}
	for _, sample := range t.Samples {
		if err := run.sample(ctx, sample); err != nil {
			return nil, err
		}
	}

	rep = run.report.Finalize()
	span.SetAttributes(
		attribute.Int("upload.records_created", rep.RecordsCreated),
		attribute.Int("upload.fields_created", rep.FieldsCreated),
		attribute.Int("upload.failed_operations", len(rep.FailedOperations)),
	)
	return rep, nil
}

func (r *walk) sample(ctx context.Context, s tree.Sample) error {
	token := r.newToken()
	n := Node{Type: NodeSample, SampleName: s.Name}
	label := fmt.Sprintf("%s: %s", s.Name, token)

	ok, err := r.node(ctx, n, label, "", s.Fields, r.pacing.Sample)
	if err != nil || !ok {
		return err
	}

	for _, d := range s.Datasets {
		if err := r.dataset(ctx, s.Name, token, d); err != nil {
			return err
		}
	}
	return nil
}

func (r *walk) dataset(ctx context.Context, sampleName, sampleToken string, d tree.Dataset) error {
	n := Node{Type: NodeDataset, SampleName: sampleName, DatasetID: d.ID}
	label := fmt.Sprintf("dataset_%s_experiment_%s", d.ID, sampleToken)
	description := fmt.Sprintf("%s_Dataset_%s", sampleName, d.ID)

	ok, err := r.node(ctx, n, label, description, d.Fields, r.pacing.Dataset)
	if err != nil || !ok {
		return err
	}

	for _, e := range d.Experiments {
		if err := r.experiment(ctx, sampleName, d.ID, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *walk) experiment(ctx context.Context, sampleName, datasetID string, e tree.Experiment) error {
	n := Node{Type: NodeExperiment, SampleName: sampleName, DatasetID: datasetID, Expno: e.Expno}
	label := fmt.Sprintf("experiment_%s_dataset_%s", e.Expno, datasetID)
	description := fmt.Sprintf("Experiment %s data", e.Expno)

	_, err := r.node(ctx, n, label, description, e.Fields, r.pacing.Experiment)
	return err
}

// node creates the record and field of one node. It reports whether both
// were created; the error is non-nil only when ctx is done. A node whose
// field fails is reported as failed even though its record exists.
func (r *walk) node(ctx context.Context, n Node, label, description string, data tree.Payload, pause time.Duration) (bool, error) {
	record, err := retry.Do(ctx, r.recordPolicy, func(ctx context.Context) (aria.Record, error) {
		return r.writer.CreateRecord(ctx, r.bucket.ID, RecordSchema, label)
	}, r.retryOptions("record", n)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		logging.Warnf("Failed to create record for %s: %v", n, err)
		r.report.Failed(n, fmt.Errorf("create record: %w", err))
		return false, nil
	}

	field, err := retry.Do(ctx, r.fieldPolicy, func(ctx context.Context) (aria.Field, error) {
		return r.writer.CreateField(ctx, record.ID, FieldType, data, description)
	}, r.retryOptions("field", n)...)
	pauseErr := r.sleep(ctx, pause)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		logging.Warnf("Failed to create field for %s: %v", n, err)
		r.report.Failed(n, fmt.Errorf("create field: %w", err))
		return false, nil
	}
	r.report.Created(n, record, field, data)
	logging.Debugf("Uploaded %s as record %s", n, record.ID)

	if pauseErr != nil {
		return false, pauseErr
	}
	return true, nil
}

func (r *walk) retryOptions(what string, n Node) []retry.Option {
	return []retry.Option{
		retry.WithSleep(r.sleep),
		retry.WithNotify(func(attempt int, err error, wait time.Duration) {
			logging.Warnf("Attempt %d to create %s for %s failed: %v (retrying in %s)", attempt, what, n, err, wait)
		}),
	}
}

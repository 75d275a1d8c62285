package upload

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"nmrcerm/internal/aria"
	"nmrcerm/internal/logging"
	"nmrcerm/internal/telemetry"
	"nmrcerm/internal/tree"
)

const (
	// VisitKind is the registry entity type buckets are created under.
	VisitKind = "visit"

	// EmbargoYears is how long uploaded data stays embargoed.
	EmbargoYears = 3

	embargoLayout = "2006-01-02"
)

// ProjectStore resolves a project to its visit and export file.
type ProjectStore interface {
	GetVisitID(ctx context.Context, projectName string) (string, error)
	GetMetadataPath(ctx context.Context, projectName string) (string, error)
}

// Session is a registry session as used by one send run.
type Session interface {
	RecordWriter
	Login(ctx context.Context) error
	OpenVisit(visitID int, kind string, exclusive bool) aria.Visit
	CreateBucket(ctx context.Context, visit aria.Visit, embargoDate string) (aria.Bucket, error)
}

// SessionFactory returns a fresh, not yet logged in session.
type SessionFactory func() Session

// Sender uploads the export of a project to the registry.
type Sender struct {
	store      ProjectStore
	newSession SessionFactory
	walkerOpts []WalkerOption
	timeNow    func() time.Time
}

// SenderOption customizes a Sender.
type SenderOption func(*Sender)

// WithWalkerOptions passes options to the walker of every run.
func WithWalkerOptions(opts ...WalkerOption) SenderOption {
	return func(s *Sender) {
		s.walkerOpts = append(s.walkerOpts, opts...)
	}
}

// WithClock replaces time.Now for the embargo date.
func WithClock(now func() time.Time) SenderOption {
	return func(s *Sender) {
		s.timeNow = now
	}
}

// NewSender creates a Sender.
func NewSender(store ProjectStore, newSession SessionFactory, opts ...SenderOption) *Sender {
	s := &Sender{
		store:      store,
		newSession: newSession,
		timeNow:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EmbargoDate returns the embargo date for a bucket created at now.
func EmbargoDate(now time.Time) string {
	return now.AddDate(EmbargoYears, 0, 0).Format(embargoLayout)
}

// Send uploads every node of the project's export into a new bucket.
// A returned error is fatal to the run; node failures are in the report.
func (s *Sender) Send(ctx context.Context, projectName string) (rep *Report, err error) {
	ctx, span := telemetry.StartSpan(ctx, "upload.send")
	span.SetAttributes(attribute.String("project.name", projectName))
	defer func() { telemetry.EndSpan(span, err) }()

	rawVisitID, err := s.store.GetVisitID(ctx, projectName)
	if err != nil {
		return nil, err
	}
	visitID, err := strconv.Atoi(strings.TrimSpace(rawVisitID))
	if err != nil {
		return nil, fmt.Errorf("visit id %q of project %s is not an integer", rawVisitID, projectName)
	}

	path, err := s.store.GetMetadataPath(ctx, projectName)
	if err != nil {
		return nil, err
	}

	t, err := tree.Load(path)
	if err != nil {
		return nil, err
	}
	samples, datasets, experiments := t.Counts()
	logging.Infof("Loaded %s: %d samples, %d datasets, %d experiments", path, samples, datasets, experiments)

	session := s.newSession()
	if err := session.Login(ctx); err != nil {
		return nil, err
	}

	visit := session.OpenVisit(visitID, VisitKind, true)
	bucket, err := session.CreateBucket(ctx, visit, EmbargoDate(s.timeNow()))
	if err != nil {
		return nil, err
	}
	logging.Infof("Created bucket %s for visit %d (embargoed until %s)", bucket.ID, visitID, bucket.EmbargoDate)

	rep, err = NewWalker(session, s.walkerOpts...).Walk(ctx, bucket, t)
	if err != nil {
		return nil, err
	}

	logging.Infof("Upload of project %s finished: %d records, %d fields, %d failures",
		projectName, rep.RecordsCreated, rep.FieldsCreated, len(rep.FailedOperations))
	return rep, nil
}

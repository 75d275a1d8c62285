// Package aria is a client for the ARIA registry: OAuth2 login, buckets,
// records and fields.
package aria

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"nmrcerm/internal/telemetry"
)

// API paths, relative to Config.BaseURL.
const (
	bucketPath = "/api/v1/bucket"
	recordPath = "/api/v1/record"
	fieldPath  = "/api/v1/field"
)

// Config configures a Session.
type Config struct {
	// BaseURL is the registry root, e.g. https://aria.structuralbiology.eu
	BaseURL string

	// TokenURL is the OAuth2 token endpoint.
	TokenURL string

	ClientID     string
	ClientSecret string
	Scopes       []string

	// Timeout for individual requests (default: 30s).
	Timeout time.Duration

	// RateLimit is a client-side ceiling in requests per second; <= 0 disables it.
	RateLimit float64

	// RateBurst is the burst allowed by RateLimit (default: 1).
	RateBurst int

	// Transport allows injecting a custom HTTP transport (for tests).
	Transport http.RoundTripper
}

// Session is an authenticated connection to the registry, owned by one run.
type Session struct {
	cfg     Config
	limiter *rate.Limiter
	client  *http.Client
}

// NewSession creates a session; call Login before anything else.
func NewSession(cfg Config) *Session {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateBurst < 1 {
		cfg.RateBurst = 1
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Session{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.RateBurst),
	}
}

// Login obtains an access token with the client-credentials grant.
func (s *Session) Login(ctx context.Context) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "aria.login")
	defer func() { telemetry.EndSpan(span, err) }()

	cc := clientcredentials.Config{
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		TokenURL:     s.cfg.TokenURL,
		Scopes:       s.cfg.Scopes,
	}

	base := &http.Client{Timeout: s.cfg.Timeout, Transport: s.cfg.Transport}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	ts := cc.TokenSource(ctx)
	if _, err := ts.Token(); err != nil {
		return &AuthError{Err: err}
	}

	client := oauth2.NewClient(ctx, ts)
	client.Timeout = s.cfg.Timeout
	s.client = client
	return nil
}

// OpenVisit binds subsequent operations to one visit. It makes no network call.
func (s *Session) OpenVisit(visitID int, kind string, exclusive bool) Visit {
	return Visit{ID: visitID, Kind: kind, Exclusive: exclusive}
}

// CreateBucket creates a bucket under visit, embargoed until embargoDate
// (YYYY-MM-DD). The registry does not deduplicate buckets.
func (s *Session) CreateBucket(ctx context.Context, visit Visit, embargoDate string) (bucket Bucket, err error) {
	ctx, span := telemetry.StartSpan(ctx, "aria.create_bucket")
	span.SetAttributes(
		attribute.Int("aria.visit_id", visit.ID),
		attribute.String("aria.embargo_date", embargoDate),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	var resp createdResponse
	req := bucketRequest{
		AriaID:         visit.ID,
		AriaEntityType: visit.Kind,
		EmbargoedUntil: embargoDate,
		Exclusive:      visit.Exclusive,
	}
	if err := s.post(ctx, bucketPath, req, &resp); err != nil {
		return Bucket{}, fmt.Errorf("create bucket: %w", err)
	}

	return Bucket{
		ID:          resp.ID,
		VisitID:     visit.ID,
		EntityType:  visit.Kind,
		EmbargoDate: embargoDate,
	}, nil
}

// CreateRecord creates a record of schema in bucket.
func (s *Session) CreateRecord(ctx context.Context, bucketID ID, schema, label string) (record Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "aria.create_record")
	span.SetAttributes(
		attribute.String("aria.bucket_id", string(bucketID)),
		attribute.String("aria.schema", schema),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	var resp createdResponse
	req := recordRequest{Bucket: bucketID, Schema: schema, Label: label}
	if err := s.post(ctx, recordPath, req, &resp); err != nil {
		return Record{}, fmt.Errorf("create record: %w", err)
	}

	return Record{ID: resp.ID, BucketID: bucketID, Schema: schema, Label: label}, nil
}

// CreateField attaches data to record. description may be empty.
func (s *Session) CreateField(ctx context.Context, recordID ID, fieldType string, data any, description string) (field Field, err error) {
	ctx, span := telemetry.StartSpan(ctx, "aria.create_field")
	span.SetAttributes(
		attribute.String("aria.record_id", string(recordID)),
		attribute.String("aria.field_type", fieldType),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	var resp createdResponse
	req := fieldRequest{Record: recordID, FieldType: fieldType, Content: data, Description: description}
	if err := s.post(ctx, fieldPath, req, &resp); err != nil {
		return Field{}, fmt.Errorf("create field: %w", err)
	}

	return Field{ID: resp.ID, RecordID: recordID, FieldType: fieldType, Description: description}, nil
}

func (s *Session) post(ctx context.Context, path string, body any, out *createdResponse) error {
	if s.client == nil {
		return ErrNotLoggedIn
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	url := strings.TrimSuffix(s.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "nmrcerm")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Method:     http.MethodPost,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if out.ID == "" {
		return fmt.Errorf("%s %s: %w", http.MethodPost, path, ErrMissingID)
	}
	return nil
}

package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nmrcerm/internal/aria"
	"nmrcerm/internal/config"
	"nmrcerm/internal/database"
	"nmrcerm/internal/upload"
)

const export = `[{"name": "lysozyme", "experimentDTO": [{"id": "d1", "experimentList": [{"expno": "10"}]}]}]`

type fakeSession struct {
	loginErr error
	calls    []string
	nextID   int
}

func (f *fakeSession) Login(ctx context.Context) error {
	f.calls = append(f.calls, "login")
	return f.loginErr
}

func (f *fakeSession) OpenVisit(visitID int, kind string, exclusive bool) aria.Visit {
	return aria.Visit{ID: visitID, Kind: kind, Exclusive: exclusive}
}

func (f *fakeSession) CreateBucket(ctx context.Context, visit aria.Visit, embargoDate string) (aria.Bucket, error) {
	f.calls = append(f.calls, "bucket")
	return aria.Bucket{ID: "bkt-1", VisitID: visit.ID, EntityType: visit.Kind, EmbargoDate: embargoDate}, nil
}

func (f *fakeSession) CreateRecord(ctx context.Context, bucketID aria.ID, schema, label string) (aria.Record, error) {
	f.calls = append(f.calls, "record")
	f.nextID++
	return aria.Record{ID: aria.ID(fmt.Sprint(f.nextID)), BucketID: bucketID, Schema: schema, Label: label}, nil
}

func (f *fakeSession) CreateField(ctx context.Context, recordID aria.ID, fieldType string, data any, description string) (aria.Field, error) {
	f.calls = append(f.calls, "field")
	f.nextID++
	return aria.Field{ID: aria.ID(fmt.Sprint(f.nextID)), RecordID: recordID, FieldType: fieldType, Description: description}, nil
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newMetadataServer(t *testing.T) *httptest.Server {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "operator"}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
	mux.HandleFunc("/fandango/export/json/1234", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(export))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestManager(t *testing.T, baseURL string, session *fakeSession) *Manager {
	t.Helper()
	tmpDir := t.TempDir()
	cfg := &config.Config{
		DatabasePath: filepath.Join(tmpDir, "fandango.db"),
		MetadataServer: config.MetadataServerConfig{
			BaseURL:  baseURL,
			Username: "operator",
			Password: "pw",
		},
		Metadata: config.MetadataConfig{OutputPath: filepath.Join(tmpDir, "metadata")},
		Aria: config.AriaConfig{
			BaseURL:      "http://registry.invalid",
			ClientID:     "client",
			ClientSecret: "secret",
		},
	}

	manager, err := NewManager(cfg,
		WithSessionFactory(func() upload.Session { return session }),
		WithSenderOptions(upload.WithWalkerOptions(upload.WithSleep(noSleep))),
	)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(manager.Close)
	return manager
}

func TestGenerateThenSend(t *testing.T) {
	srv := newMetadataServer(t)
	session := &fakeSession{}
	manager := newTestManager(t, srv.URL, session)
	ctx := context.Background()

	result := manager.GenerateMetadata(ctx, "p1", "1234")
	if !result.Success {
		t.Fatalf("GenerateMetadata() = %+v", result)
	}
	info, ok := result.Info.(GenerateInfo)
	if !ok || !strings.HasSuffix(info.MetadataPath, "project_1234.json") {
		t.Fatalf("GenerateMetadata() info = %#v", result.Info)
	}

	entries, err := manager.ShowProject(ctx, "p1")
	if err != nil {
		t.Fatalf("ShowProject() error = %v", err)
	}
	values := map[string]string{}
	for _, e := range entries {
		values[e.Key] = e.Value
	}
	if values[database.KeyVisitID] != "1234" || values[database.KeyMetadataPath] != info.MetadataPath {
		t.Errorf("project entries = %v", values)
	}

	result = manager.SendMetadata(ctx, "p1")
	if !result.Success {
		t.Fatalf("SendMetadata() = %+v", result)
	}
	rep, ok := result.Info.(*upload.Report)
	if !ok {
		t.Fatalf("SendMetadata() info = %#v", result.Info)
	}
	if rep.RecordsCreated != 3 || rep.FieldsCreated != 3 || rep.Bucket.VisitID != 1234 {
		t.Errorf("report = %+v", rep)
	}
}

func TestSendMetadataLoginFailure(t *testing.T) {
	session := &fakeSession{loginErr: &aria.AuthError{Err: errors.New("invalid_client")}}
	manager := newTestManager(t, "http://unused", session)
	ctx := context.Background()

	if err := manager.SetProject(ctx, "p1", database.KeyVisitID, "1234"); err != nil {
		t.Fatalf("SetProject() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "project_1234.json")
	writeFile(t, path, export)
	if err := manager.SetProject(ctx, "p1", database.KeyMetadataPath, path); err != nil {
		t.Fatalf("SetProject() error = %v", err)
	}

	result := manager.SendMetadata(ctx, "p1")
	if result.Success {
		t.Fatalf("SendMetadata() = %+v, want failure", result)
	}
	msg, ok := result.Info.(string)
	if !ok || !strings.Contains(msg, "registry authentication failed") {
		t.Errorf("info = %#v", result.Info)
	}
	if len(session.calls) != 1 || session.calls[0] != "login" {
		t.Errorf("calls = %v, want only login", session.calls)
	}
}

func TestSendMetadataUnknownProject(t *testing.T) {
	session := &fakeSession{}
	manager := newTestManager(t, "http://unused", session)

	result := manager.SendMetadata(context.Background(), "missing")
	if result.Success {
		t.Fatalf("SendMetadata() = %+v, want failure", result)
	}
	if len(session.calls) != 0 {
		t.Errorf("calls = %v, want none", session.calls)
	}
}

func TestActionsRequireConfiguration(t *testing.T) {
	manager := newTestManager(t, "", &fakeSession{})

	result := manager.GenerateMetadata(context.Background(), "p1", "1234")
	if result.Success || !strings.Contains(result.Info.(string), "BASE_URL") {
		t.Errorf("GenerateMetadata() = %+v", result)
	}

	manager.cfg.Aria.ClientSecret = ""
	result = manager.SendMetadata(context.Background(), "p1")
	if result.Success || !strings.Contains(result.Info.(string), "ARIA_CLIENT_SECRET") {
		t.Errorf("SendMetadata() = %+v", result)
	}
}

func TestVersion(t *testing.T) {
	manager := newTestManager(t, "http://unused", &fakeSession{})
	if v := manager.Version(); v.GoVersion == "" || v.Version == "" {
		t.Errorf("Version() = %+v", v)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

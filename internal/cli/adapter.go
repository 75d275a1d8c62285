package cli

import (
	"context"
	"fmt"
	"strings"

	"nmrcerm/internal/plugin"
	"nmrcerm/internal/upload"
)

// NewManagerAdapter wraps a plugin.Manager for CLI usage.
func NewManagerAdapter(manager *plugin.Manager) Manager {
	return &managerAdapter{manager: manager}
}

type managerAdapter struct {
	manager *plugin.Manager
}

func (m *managerAdapter) GenerateMetadata(ctx context.Context, projectName, vid string) Result {
	return convertResult(m.manager.GenerateMetadata(ctx, projectName, vid))
}

func (m *managerAdapter) SendMetadata(ctx context.Context, projectName string) Result {
	return convertResult(m.manager.SendMetadata(ctx, projectName))
}

func (m *managerAdapter) SetProject(ctx context.Context, projectName, key, value string) error {
	return m.manager.SetProject(ctx, projectName, key, value)
}

func (m *managerAdapter) ShowProject(ctx context.Context, projectName string) ([]ProjectEntry, error) {
	entries, err := m.manager.ShowProject(ctx, projectName)
	if err != nil {
		return nil, err
	}
	converted := make([]ProjectEntry, 0, len(entries))
	for _, e := range entries {
		converted = append(converted, ProjectEntry{Key: e.Key, Value: e.Value, UpdatedAt: e.CreatedAt})
	}
	return converted, nil
}

func (m *managerAdapter) Version() VersionInfo {
	v := m.manager.Version()
	return VersionInfo{
		Version:   v.Version,
		Commit:    v.Commit,
		BuildDate: v.BuildDate,
		GoVersion: v.GoVersion,
		Platform:  v.Platform,
	}
}

func convertResult(r plugin.ActionResult) Result {
	return Result{Success: r.Success, Info: r.Info, Summary: summarize(r.Info)}
}

func summarize(info any) string {
	switch v := info.(type) {
	case string:
		return v
	case plugin.GenerateInfo:
		return fmt.Sprintf("Metadata of visit %s written to %s", v.VisitID, v.MetadataPath)
	case *upload.Report:
		return summarizeReport(v)
	default:
		return fmt.Sprint(v)
	}
}

func summarizeReport(r *upload.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bucket %s (visit %d, embargoed until %s)\n", r.Bucket.ID, r.Bucket.VisitID, r.Bucket.EmbargoDate)
	fmt.Fprintf(&b, "Records created: %d\n", r.RecordsCreated)
	fmt.Fprintf(&b, "Fields created: %d\n", r.FieldsCreated)
	fmt.Fprintf(&b, "Failed operations: %d", len(r.FailedOperations))
	for _, f := range r.FailedOperations {
		fmt.Fprintf(&b, "\n  - %s", f)
	}
	return b.String()
}

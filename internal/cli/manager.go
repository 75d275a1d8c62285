package cli

import "context"

// Manager abstracts the plugin actions for the CLI.
type Manager interface {
	GenerateMetadata(ctx context.Context, projectName, vid string) Result
	SendMetadata(ctx context.Context, projectName string) Result

	SetProject(ctx context.Context, projectName, key, value string) error
	ShowProject(ctx context.Context, projectName string) ([]ProjectEntry, error)

	Version() VersionInfo
}

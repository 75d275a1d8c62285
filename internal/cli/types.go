package cli

import "time"

// Exit codes returned by Execute.
const (
	ExitSuccess      = 0
	ExitRuntimeError = 1
	ExitInvalidUsage = 2
)

// Result is the outcome of an action. Summary is the text rendering of Info.
type Result struct {
	Success bool   `json:"success" yaml:"success"`
	Info    any    `json:"info" yaml:"info"`
	Summary string `json:"-" yaml:"-"`
}

// ProjectEntry is one key of a project.
type ProjectEntry struct {
	Key       string    `json:"key" yaml:"key"`
	Value     string    `json:"value" yaml:"value"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// VersionInfo describes the running binary.
type VersionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

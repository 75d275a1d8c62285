package database

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a project or one of its keys is unknown.
var ErrNotFound = errors.New("not found")

// Well-known project_info keys
const (
	KeyVisitID      = "visit_id"
	KeyMetadataPath = "metadata_path"
)

// ProjectEntry is one key/value row of a project.
type ProjectEntry struct {
	ProjectName string    `json:"project_name" yaml:"project_name"`
	Key         string    `json:"key" yaml:"key"`
	Value       string    `json:"value" yaml:"value"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

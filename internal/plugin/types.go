package plugin

// ActionResult is returned by every plugin action. Info holds the action's
// result on success and an error message otherwise.
type ActionResult struct {
	Success bool `json:"success" yaml:"success"`
	Info    any  `json:"info" yaml:"info"`
}

// GenerateInfo describes a written export.
type GenerateInfo struct {
	VisitID      string `json:"visit_id" yaml:"visit_id"`
	MetadataPath string `json:"metadata_path" yaml:"metadata_path"`
}

func failure(err error) ActionResult {
	return ActionResult{Success: false, Info: err.Error()}
}

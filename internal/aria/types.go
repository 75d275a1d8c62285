package aria

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is an identifier assigned by the registry. The API returns either a
// string or a number; both are kept as text.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Visit binds operations to one registry entity.
type Visit struct {
	ID        int    `json:"id" yaml:"id"`
	Kind      string `json:"kind" yaml:"kind"`
	Exclusive bool   `json:"exclusive" yaml:"exclusive"`
}

// Bucket is a dated container for the records of one run.
type Bucket struct {
	ID          ID     `json:"id" yaml:"id"`
	VisitID     int    `json:"visit_id" yaml:"visit_id"`
	EntityType  string `json:"entity_type" yaml:"entity_type"`
	EmbargoDate string `json:"embargo_date" yaml:"embargo_date"`
}

// Record represents one uploaded tree node.
type Record struct {
	ID       ID     `json:"id" yaml:"id"`
	BucketID ID     `json:"bucket_id" yaml:"bucket_id"`
	Schema   string `json:"schema" yaml:"schema"`
	Label    string `json:"label" yaml:"label"`
}

// Field carries the payload of a record.
type Field struct {
	ID          ID     `json:"id" yaml:"id"`
	RecordID    ID     `json:"record_id" yaml:"record_id"`
	FieldType   string `json:"field_type" yaml:"field_type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type bucketRequest struct {
	AriaID         int    `json:"aria_id"`
	AriaEntityType string `json:"aria_entity_type"`
	EmbargoedUntil string `json:"embargoed_until"`
	Exclusive      bool   `json:"exclusive"`
}

type recordRequest struct {
	Bucket ID     `json:"bucket"`
	Schema string `json:"schema"`
	Label  string `json:"label"`
}

type fieldRequest struct {
	Record      ID     `json:"record"`
	FieldType   string `json:"field_type"`
	Content     any    `json:"content"`
	Description string `json:"description,omitempty"`
}

type createdResponse struct {
	ID ID `json:"id"`
}

package wire

import (
	"encoding/json"

	"github.com/dtroode/credsync/internal/model"
)

// errdetails.ErrorInfo fields used by credsync statuses.
const (
	ErrorDomain = "credsync"

	// ReasonPartialBatch marks a push aborted part way through. The
	// metadata carries the failing item and the gencounts given to the
	// items stored before it.
	ReasonPartialBatch = "PARTIAL_BATCH_FAILURE"

	MetaLayer     = "layer"
	MetaUUID      = "uuid"
	MetaIndex     = "index"
	MetaProcessed = "processed"
	MetaAssigned  = "assigned"
)

// EncodeAssignments packs assignments into an ErrorInfo metadata value.
func EncodeAssignments(assigned []model.Assignment) (string, error) {
	out := make([]Assignment, 0, len(assigned))
	for _, a := range assigned {
		out = append(out, Assignment{Layer: string(a.Layer), UUID: a.UUID, GenCount: a.GenCount})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeAssignments reverses EncodeAssignments. An empty value decodes to nil.
func DecodeAssignments(value string) ([]model.Assignment, error) {
	if value == "" {
		return nil, nil
	}
	var in []Assignment
	if err := json.Unmarshal([]byte(value), &in); err != nil {
		return nil, err
	}
	var out []model.Assignment
	for _, a := range in {
		out = append(out, model.Assignment{Layer: model.Layer(a.Layer), UUID: a.UUID, GenCount: a.GenCount})
	}
	return out, nil
}

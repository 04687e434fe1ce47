package handler

import (
	"encoding/json"

	"equilens/internal/biasaudit"
	dErrors "equilens/pkg/domain-errors"
)

// maxRecords bounds one submission. The computation is linear in records
// times categories, so the cap keeps worst-case latency predictable.
const maxRecords = 250_000

// RecordPayload is one subject row in a submission. Selected is a pointer so
// a missing field is distinguishable from false.
type RecordPayload struct {
	Attributes map[string]string `json:"attributes"`
	Selected   *bool             `json:"selected"`
}

// SubmitAuditRequest is the HTTP request body for POST /v1/audits. Config is
// kept raw and parsed by the engine's document loader, which accepts both
// JSON and YAML-shaped values.
type SubmitAuditRequest struct {
	Records      []RecordPayload `json:"records"`
	Config       json.RawMessage `json:"config"`
	UnknownCount int             `json:"unknown_count"`

	// Parsed values (populated by Validate)
	parsedRecords []biasaudit.Record
	parsedConfig  biasaudit.AuditConfig
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SubmitAuditRequest) Validate() error {
	if len(r.Config) == 0 {
		return dErrors.New(dErrors.CodeValidation, "config is required")
	}
	if len(r.Records) > maxRecords {
		return dErrors.Newf(dErrors.CodeValidation, "at most %d records per audit", maxRecords)
	}
	if r.UnknownCount < 0 {
		return dErrors.New(dErrors.CodeValidation, "unknown_count cannot be negative")
	}

	cfg, err := biasaudit.ParseConfigDocument(r.Config)
	if err != nil {
		return err
	}
	r.parsedConfig = cfg

	records := make([]biasaudit.Record, len(r.Records))
	for i, rec := range r.Records {
		if rec.Selected == nil {
			return dErrors.Newf(dErrors.CodeValidation, "records[%d].selected must be a boolean", i)
		}
		records[i] = biasaudit.Record{Attributes: rec.Attributes, Selected: *rec.Selected}
	}
	r.parsedRecords = records

	return nil
}

// ParsedRecords returns the validated records.
func (r *SubmitAuditRequest) ParsedRecords() []biasaudit.Record {
	return r.parsedRecords
}

// ParsedConfig returns the validated audit configuration.
func (r *SubmitAuditRequest) ParsedConfig() biasaudit.AuditConfig {
	return r.parsedConfig
}

package config

import (
	"encoding/json"
	"fmt"

	"github.com/rowsift/runtime/pkg/sift"
)

// ConvertToJob converts a parsed job document to a sift.Job.
// The document should have been validated against the schema first.
//
// The document is expected to have this structure:
//
//	{
//	  "schemaVersion": "1.0",
//	  "job": {
//	    "name": "...",
//	    "source": {...},
//	    "filters": {...},
//	    "columns": [...],
//	    "outputs": [...]
//	  }
//	}
func ConvertToJob(data map[string]interface{}) (*sift.Job, error) {
	if data == nil {
		return nil, fmt.Errorf("job document is nil")
	}

	jobData, ok := data["job"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'job' section")
	}

	name, ok := jobData["name"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("missing required field 'job.name'")
	}
	if _, ok := jobData["source"].(map[string]interface{}); !ok {
		return nil, fmt.Errorf("missing or invalid 'job.source' section")
	}

	raw, err := json.Marshal(jobData)
	if err != nil {
		return nil, fmt.Errorf("encoding job section: %w", err)
	}
	job := &sift.Job{}
	if err := json.Unmarshal(raw, job); err != nil {
		return nil, fmt.Errorf("decoding job section: %w", err)
	}

	if job.ID == "" {
		job.ID = job.Name
	}
	if job.OnExpressionError == "" {
		job.OnExpressionError = sift.OnErrorFail
	}
	return job, nil
}

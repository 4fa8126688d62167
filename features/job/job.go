package job

import (
	"encoding/json"
	"time"
)

// Job is an asynchronous ingest that failed and is waiting for a manual retry.
type Job struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	Handler   string          `json:"handler"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}

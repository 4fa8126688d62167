package worker

// IngestFilePayload is the body published on config.TopicIngestFile.
type IngestFilePayload struct {
	Path          string `json:"path"`
	Filename      string `json:"filename"`
	Retries       int    `json:"retries,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

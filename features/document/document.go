package document

import "time"

// Record is one persisted chunk row. ID is the store's own sequence, ChunkID the index key.
type Record struct {
	ID        int64     `json:"id"`
	ChunkID   string    `json:"chunk_id"`
	Text      string    `json:"text"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

// UploadResponse is the body returned for a synchronous upload.
type UploadResponse struct {
	Filename     string         `json:"filename"`
	TextLength   int            `json:"text_length"`
	ChunksStored int            `json:"chunks_stored"`
	Metadata     MetadataStatus `json:"metadata"`
	FailedRanges [][2]int       `json:"failed_ranges,omitempty"`
}

type MetadataStatus struct {
	Stored int    `json:"stored"`
	Error  string `json:"error,omitempty"`
}

type AskResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
}

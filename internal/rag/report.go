package rag

// BatchOutcome describes one upsert batch. Start and End are record offsets, End exclusive.
type BatchOutcome struct {
	Batch int   `json:"batch"`
	Start int   `json:"start"`
	End   int   `json:"end"`
	Err   error `json:"-"`
}

func (b BatchOutcome) Size() int {
	return b.End - b.Start
}

// BatchReport lists every batch of a multi-batch upsert. Batches are not atomic as a group.
type BatchReport struct {
	Batches []BatchOutcome
}

func (r BatchReport) Succeeded() []BatchOutcome {
	var out []BatchOutcome
	for _, b := range r.Batches {
		if b.Err == nil {
			out = append(out, b)
		}
	}
	return out
}

func (r BatchReport) Failed() []BatchOutcome {
	var out []BatchOutcome
	for _, b := range r.Batches {
		if b.Err != nil {
			out = append(out, b)
		}
	}
	return out
}

// Stored counts records in successful batches.
func (r BatchReport) Stored() int {
	n := 0
	for _, b := range r.Succeeded() {
		n += b.Size()
	}
	return n
}

// SinkReport is the metadata store outcome of an ingestion.
type SinkReport struct {
	Stored int   `json:"stored"`
	Err    error `json:"-"`
}

func (s SinkReport) OK() bool {
	return s.Err == nil
}

// IngestResult reports each sink separately: the index is authoritative, metadata is best-effort.
type IngestResult struct {
	Filename     string
	TextLength   int
	ChunksStored int
	Metadata     SinkReport
	Index        BatchReport
}

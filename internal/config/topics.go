package config

const (
	// TopicIngestFile carries uploaded PDFs waiting for asynchronous ingestion.
	TopicIngestFile = "ingest.task.file"

	// ChannelIngest is the consumer channel shared by ingest workers.
	ChannelIngest = "pdfrag"
)

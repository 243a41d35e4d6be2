package config

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment.
	DefaultDatabaseURL = ""

	// DefaultAuditQueueSize bounds the in-memory audit queue. Entries past
	// this many pending writes are subject to the overflow policy.
	DefaultAuditQueueSize = 1024

	// DefaultAuditOverflowPolicy is applied when the audit queue is full.
	// "drop_newest" discards the incoming entry, "drop_oldest" evicts the
	// oldest pending entry to make room.
	DefaultAuditOverflowPolicy = "drop_newest"

	// MaxEvidenceBytes caps the size of an uploaded evidence attachment.
	MaxEvidenceBytes = 50 << 20 // 50 MB

	// DefaultProbeEditors is the number of simulated editors raced when the
	// simulate endpoint gets no users parameter.
	DefaultProbeEditors = 3

	// MaxProbeEditors caps the number of simulated editors per probe run so a
	// single request cannot spawn an unbounded number of goroutines against
	// the connection pool.
	MaxProbeEditors = 100

	// DefaultPageSize is used when the list endpoint gets no page_size.
	DefaultPageSize = 10

	// MaxPageSize caps page_size on the list endpoint.
	MaxPageSize = 100
)

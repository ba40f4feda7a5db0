package repository

// Backend names a snapshot sink.
type Backend string

const (
	BackendNone       Backend = "none"
	BackendSQLite     Backend = "sqlite"
	BackendClickHouse Backend = "clickhouse"
	BackendKafka      Backend = "kafka"
)

// IsValidBackend returns true if b is a supported backend.
func IsValidBackend(b Backend) bool {
	switch b {
	case BackendNone, BackendSQLite, BackendClickHouse, BackendKafka:
		return true
	default:
		return false
	}
}

// NormalizeBackend converts a raw string to a backend, defaulting to none.
func NormalizeBackend(s string) Backend {
	if s == "" {
		return BackendNone
	}
	b := Backend(s)
	if IsValidBackend(b) {
		return b
	}
	return BackendNone
}

// Readable reports whether snapshots can be queried back from the backend.
func (b Backend) Readable() bool {
	return b == BackendSQLite || b == BackendClickHouse
}

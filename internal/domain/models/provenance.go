package models

// Source tags where a response came from.
type Source string

const (
	SourceRemote    Source = "remote"
	SourceSynthetic Source = "synthetic"
	// SourceFallback marks synthetic data served because a remote call failed.
	SourceFallback Source = "synthetic-fallback"
)

// Result carries data with its provenance. Err holds the remote failure that
// caused a fallback; it is informational and never surfaced as a call error.
type Result[T any] struct {
	Data   T      `json:"data"`
	Source Source `json:"source"`
	Err    error  `json:"-"`
}

// Degraded reports whether the data is not from the remote service.
func (r Result[T]) Degraded() bool { return r.Source != SourceRemote }

package models

import "time"

// Snapshot is a quote captured by the scheduled collector.
type Snapshot struct {
	ID      string    `json:"id"`
	Symbol  string    `json:"symbol"`
	Quote   Quote     `json:"quote"`
	Source  Source    `json:"source"`
	TakenAt time.Time `json:"takenAt"`
}

package models

import "time"

// Document is one keyed entry of a collection. Fields holds JSON-compatible
// values only.
type Document struct {
	Collection string
	Key        string
	Fields     map[string]any
	UpdatedAt  time.Time
}

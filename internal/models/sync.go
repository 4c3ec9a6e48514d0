package models

import "time"

// SourceFailure records a source that could not be indexed during a sync run.
// The source keeps its previous fingerprint so the next run retries it.
type SourceFailure struct {
	SourceID string `json:"source_id"`
	Stage    string `json:"stage"`
	Error    string `json:"error"`
}

// SyncReport is the outcome of one Sync Engine run
type SyncReport struct {
	Added        int             `json:"added"`
	Updated      int             `json:"updated"`
	Removed      int             `json:"removed"`
	Unchanged    int             `json:"unchanged"`
	Skipped      int             `json:"skipped"`
	Chunks       int             `json:"chunks"`
	Failed       []SourceFailure `json:"failed,omitempty"`
	MissingRoots []string        `json:"missing_roots,omitempty"`
	NoOp         bool            `json:"no_op"`
	Duration     time.Duration   `json:"duration"`
}

// Indexed returns the number of sources (new or changed) written to the store.
func (r SyncReport) Indexed() int {
	return r.Added + r.Updated
}

// PartialFailure reports whether some sources failed while the run itself completed.
func (r SyncReport) PartialFailure() bool {
	return len(r.Failed) > 0
}

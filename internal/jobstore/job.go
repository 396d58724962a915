// Package jobstore is Cobblepod's job queue. There is no database: every
// job is a file sitting in a user's inbox directory, and every state
// transition is a filesystem operation (a marker file created, a file moved
// between directories). The store's job is to make those filesystem facts
// look like a queue to the rest of the program.
package jobstore

import (
	"time"
)

// State is a job's externally-visible lifecycle stage, derived on demand
// from what's on disk rather than stored anywhere.
type State string

const (
	StateQueued         State = "queued"
	StateAcquiring      State = "acquiring"
	StateProcessing     State = "processing"
	StatePostProcessing State = "post-processing"
	StateDone           State = "done"
	StateErrored        State = "errored"
	StateStuck          State = "stuck"
)

// configFiles are per-user control files that live alongside uploads in the
// inbox but are never themselves jobs.
var configFiles = map[string]bool{
	"hotwords.txt": true,
	"language.txt": true,
}

// Job is a unit of work discovered in a user's inbox.
type Job struct {
	UserID    string
	Filename  string
	Path      string // absolute path under <ROOT>/data/in/<user>/<file>
	CreatedAt time.Time
	IsZip     bool
}

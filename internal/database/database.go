package database

import "time"

// Stores the history of runs in a sqlite database.
//
// The database is opened on first use and closed by Close.
//
// Use NewDatabase to create a new database object.
type Database interface {
	// Saves a run and its sources. A run id is assigned if the run has none.
	// Returns the run id.
	SaveRun(run Run) (string, error)
	// Returns the latest runs, newest first.
	Recent(count int) ([]Run, error)
	Close()
}

// A single invocation of an action.
type Run struct {
	ID        string
	Action    string
	Started   time.Time
	Finished  time.Time
	Status    int
	Timestamp int64
	Records   int
	Added     int
	Skipped   int
	Failed    int
	LastError string
	Sources   []Source
}

// A feed fetched by a run.
type Source struct {
	URI       string
	Status    int
	Timestamp int64
	Error     string
}

func NewDatabase(filename string) Database {
	var db database_impl
	db.filename = filename
	return &db
}

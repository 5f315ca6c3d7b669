package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type database_impl struct {
	filename string
	db       *sql.DB
}

const size_1K = 1024
const size_1M = size_1K * size_1K
const size_1G = size_1M * size_1K

var ErrTooLarge = errors.New("database file is too large")

func (database *database_impl) SaveRun(run Run) (string, error) {
	if err := database.initDatabase(); err != nil {
		return "", err
	}
	if len(run.ID) == 0 {
		run.ID = uuid.NewString()
	}
	tx, err := database.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	_, err = tx.Exec("INSERT INTO runs (id,action,started,finished,status,timestamp,records,added,skipped,failed,last_error) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)",
		run.ID, run.Action, run.Started, run.Finished, run.Status, run.Timestamp, run.Records, run.Added, run.Skipped, run.Failed, run.LastError)
	if err != nil {
		return "", err
	}
	for _, source := range run.Sources {
		_, err = tx.Exec("INSERT INTO sources (run_id,uri,status,timestamp,error) VALUES ($1,$2,$3,$4,$5)",
			run.ID, source.URI, source.Status, source.Timestamp, source.Error)
		if err != nil {
			return "", err
		}
	}
	if err = tx.Commit(); err != nil {
		return "", err
	}
	log.Debug("Saved run.", "id", run.ID, "action", run.Action)
	return run.ID, nil
}

func (database *database_impl) Recent(count int) ([]Run, error) {
	if err := database.initDatabase(); err != nil {
		return nil, err
	}
	rows, err := database.db.Query("SELECT id,action,started,finished,status,timestamp,records,added,skipped,failed,last_error FROM runs ORDER BY rowid DESC LIMIT $1", count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	runs := []Run{}
	for rows.Next() {
		var run Run
		err = rows.Scan(&run.ID, &run.Action, &run.Started, &run.Finished, &run.Status, &run.Timestamp, &run.Records, &run.Added, &run.Skipped, &run.Failed, &run.LastError)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	for idx := range runs {
		runs[idx].Sources, err = database.sources(runs[idx].ID)
		if err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (database *database_impl) Close() {
	if database.db != nil {
		database.db.Close()
		database.db = nil
	}
}

func (database *database_impl) sources(runID string) ([]Source, error) {
	rows, err := database.db.Query("SELECT uri,status,timestamp,error FROM sources WHERE run_id=$1 ORDER BY rowid", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sources []Source
	for rows.Next() {
		var source Source
		if err = rows.Scan(&source.URI, &source.Status, &source.Timestamp, &source.Error); err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (database *database_impl) initDatabase() error {
	if database.db != nil {
		return nil
	}
	fileInfo, err := os.Stat(database.filename)
	if err == nil && fileInfo.Size() > size_1G {
		return fmt.Errorf("%s: %w", database.filename, ErrTooLarge)
	}
	db, err := sql.Open("sqlite3", database.filename)
	if err != nil {
		return err
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			action TEXT,
			started TIMESTAMP,
			finished TIMESTAMP,
			status INTEGER,
			timestamp INTEGER,
			records INTEGER,
			added INTEGER,
			skipped INTEGER,
			failed INTEGER,
			last_error TEXT)`,
		`CREATE TABLE IF NOT EXISTS sources (
			run_id TEXT,
			uri TEXT,
			status INTEGER,
			timestamp INTEGER,
			error TEXT)`,
		"CREATE INDEX IF NOT EXISTS sources_run_id_idx ON sources (run_id)",
	} {
		if _, err = db.Exec(stmt); err != nil {
			db.Close()
			return err
		}
	}
	database.db = db
	return nil
}

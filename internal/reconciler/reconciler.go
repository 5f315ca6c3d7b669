package reconciler

import (
	"fmt"

	"github.com/nylssoft/godrop/internal/database"
	"github.com/nylssoft/godrop/internal/feed"
	"github.com/nylssoft/godrop/internal/metrics"
	"github.com/nylssoft/godrop/internal/nft"
	"github.com/nylssoft/godrop/internal/parser"
	"github.com/nylssoft/godrop/internal/rule"
	"github.com/nylssoft/godrop/internal/zone"
)

// Applies the DROP feeds to the nft table.
//
// Failures of single records do not abort a run. They are kept in a last error slot
// that is overwritten by each subsequent failure.
//
// Use NewReconciler to create a new reconciler.
type Reconciler interface {
	// Ensures table, sets and chains.
	Prepare() error
	// Deletes the table.
	Clear() error
	// Flushes the sets.
	Flush() error
	// Fetches all feeds and loads their records. Returns a *FetchError without changing
	// the table if a feed could not be fetched.
	Refresh() (Summary, error)
	// Prepares the table and applies the records in order.
	LoadElements(records []parser.Record) Summary
	// Returns the most recent failure of the current run.
	LastError() error
}

// Counts of a LoadElements run.
type Summary struct {
	Records   int
	Malformed int
	Added     int
	// matched by a skip rule
	Skipped int
	// range of a disabled address family
	Disabled  int
	Invalid   int
	Failed    int
	Domains   int
	Timestamp int64
}

type Options struct {
	SkipRules []rule.Rule
	// may be nil
	History database.Database
	// may be nil
	Metrics metrics.Metrics
}

// Returned by Refresh if the merged status of the feeds is not 200 or a feed
// could not be retrieved.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch failed (status %d)", e.Status)
	}
	return fmt.Sprintf("fetch failed (status %d): %s", e.Status, e.Err.Error())
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewReconciler(n nft.Nft, fetcher feed.Fetcher, sink zone.Sink, options Options) Reconciler {
	var reconciler reconciler_impl
	reconciler.nft = n
	reconciler.fetcher = fetcher
	reconciler.sink = sink
	reconciler.options = options
	return &reconciler
}

package feed

import (
	"net/http"

	"github.com/nylssoft/godrop/internal/parser"
)

// Retrieves line-delimited JSON feeds and keeps the merged state of all fetches of a session.
//
// The merged status and timestamp only ever grow: a later fetch with a smaller status
// never masks an earlier failure. The merged error is the most recent failure.
//
// Use NewFetcher to create a new fetcher.
type Fetcher interface {
	// Fetches a single URI, merges the result into the session state and returns the result of this fetch.
	Fetch(uri string) Result
	// Fetches all configured sources in order and returns the merged session state.
	FetchAll() Result
	// Returns the merged session state.
	Merged() Result
	// Returns the results of the individual fetches of the session. Records are omitted.
	Sources() []Result
	// Starts a new session.
	Reset()
}

type Result struct {
	URI       string
	Status    int
	Timestamp int64
	Records   []parser.Record
	Err       error
}

const (
	DefaultUserAgent = "godrop/" + Version + " (+load Spamhaus DROP into nftables sets)"
	Version          = "0.1.0"
	// payload size limit per feed
	MaxPayloadSize = 16 * 1024 * 1024
	maxRedirects   = 10
)

var DefaultSources = []string{
	"https://www.spamhaus.org/drop/drop_v4.json",
	"https://www.spamhaus.org/drop/drop_v6.json",
}

// Creates a new fetcher for the specified sources.
func NewFetcher(sources []string) Fetcher {
	var fetcher fetcher_impl
	fetcher.sources = sources
	fetcher.userAgent = DefaultUserAgent
	fetcher.client = newClient()
	fetcher.Reset()
	return &fetcher
}

func newClient() *http.Client {
	return &http.Client{
		Transport:     newTransport(),
		CheckRedirect: checkRedirect,
	}
}

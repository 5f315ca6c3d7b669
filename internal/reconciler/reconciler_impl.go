package reconciler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nylssoft/godrop/internal/database"
	"github.com/nylssoft/godrop/internal/feed"
	"github.com/nylssoft/godrop/internal/metrics"
	"github.com/nylssoft/godrop/internal/nft"
	"github.com/nylssoft/godrop/internal/parser"
	"github.com/nylssoft/godrop/internal/rule"
	"github.com/nylssoft/godrop/internal/zone"
)

type reconciler_impl struct {
	lastErr error
	options Options
	// dependencies
	nft     nft.Nft
	fetcher feed.Fetcher
	sink    zone.Sink
}

var errTableExists = errors.New("table still exists")

func (r *reconciler_impl) LastError() error {
	return r.lastErr
}

func (r *reconciler_impl) Prepare() error {
	started := time.Now()
	r.lastErr = r.nft.Prepare()
	r.record("prepare", started, Summary{}, r.lastErr)
	return r.lastErr
}

func (r *reconciler_impl) Clear() error {
	started := time.Now()
	deleted, err := r.nft.DeleteAll()
	if err == nil && !deleted {
		err = errTableExists
	}
	r.lastErr = err
	r.record("clear", started, Summary{}, err)
	return err
}

func (r *reconciler_impl) Flush() error {
	started := time.Now()
	exists, err := r.nft.FlushSets()
	if !exists {
		log.Info("Table does not exist.")
	}
	r.lastErr = err
	r.record("flush", started, Summary{}, err)
	return err
}

func (r *reconciler_impl) Refresh() (Summary, error) {
	started := time.Now()
	r.lastErr = nil
	r.fetcher.Reset()
	r.sink.Reset()
	merged := r.fetcher.FetchAll()
	if r.options.Metrics != nil {
		for _, source := range r.fetcher.Sources() {
			r.options.Metrics.ObserveSource(source.URI, source.Status, source.Timestamp)
		}
	}
	if merged.Status != http.StatusOK || merged.Err != nil {
		err := &FetchError{Status: merged.Status, Err: merged.Err}
		r.lastErr = err
		r.record("refresh", started, Summary{Timestamp: merged.Timestamp}, err)
		return Summary{}, err
	}
	summary := r.LoadElements(merged.Records)
	summary.Timestamp = merged.Timestamp
	if err := r.sink.Write(merged.Timestamp); err != nil {
		log.Error("Failed to write zone files.", "err", err)
		r.lastErr = err
	}
	r.record("refresh", started, summary, nil)
	return summary, nil
}

func (r *reconciler_impl) LoadElements(records []parser.Record) Summary {
	var summary Summary
	if err := r.nft.Prepare(); err != nil {
		r.lastErr = err
	}
	for _, record := range records {
		summary.Records++
		switch record.Kind {
		case parser.KindMalformed:
			summary.Malformed++
			continue
		case parser.KindMetadata:
			continue
		}
		if match, ok := rule.FindMatch(r.options.SkipRules, record); ok {
			log.Debug("Skip record.", "rule", match.Name, "record", describe(record))
			summary.Skipped++
			continue
		}
		switch record.Kind {
		case parser.KindRange:
			r.addElement(record.Range.CIDR, &summary)
		case parser.KindAsn:
			r.addDomain(record.Domain(), &summary)
		}
	}
	log.Info("Loaded elements.", "records", summary.Records, "added", summary.Added, "skipped", summary.Skipped,
		"disabled", summary.Disabled, "invalid", summary.Invalid, "failed", summary.Failed, "domains", summary.Domains)
	return summary
}

func (r *reconciler_impl) addElement(cidr string, summary *Summary) {
	err := r.nft.AddElement(cidr)
	var invalidErr *nft.InvalidAddressError
	switch {
	case err == nil:
		summary.Added++
	case errors.Is(err, nft.ErrFamilyDisabled):
		summary.Disabled++
	case errors.As(err, &invalidErr):
		log.Warn("Invalid address.", "cidr", cidr)
		summary.Invalid++
		r.lastErr = err
	default:
		summary.Failed++
		r.lastErr = err
	}
}

func (r *reconciler_impl) addDomain(domain string, summary *Summary) {
	if len(domain) == 0 {
		return
	}
	added, err := r.sink.Add(domain)
	if err != nil {
		log.Warn("Invalid domain.", "domain", domain)
		summary.Invalid++
		r.lastErr = err
	} else if added {
		summary.Domains++
	}
}

func (r *reconciler_impl) record(action string, started time.Time, summary Summary, err error) {
	if err != nil {
		log.Error("Action failed.", "action", action, "err", err)
	}
	if r.options.Metrics != nil {
		r.options.Metrics.ObserveRun(action, metrics.Run{
			Timestamp: summary.Timestamp,
			Records:   summary.Records,
			Added:     summary.Added,
			Skipped:   summary.Skipped + summary.Disabled,
			Invalid:   summary.Invalid,
			Failed:    summary.Failed,
			Domains:   summary.Domains,
			Err:       err,
		})
		if writeErr := r.options.Metrics.Write(); writeErr != nil {
			log.Error("Failed to write metrics.", "err", writeErr)
		}
	}
	if r.options.History == nil {
		return
	}
	run := database.Run{
		Action:    action,
		Started:   started,
		Finished:  time.Now(),
		Timestamp: summary.Timestamp,
		Records:   summary.Records,
		Added:     summary.Added,
		Skipped:   summary.Skipped + summary.Disabled,
		Failed:    summary.Invalid + summary.Failed,
	}
	if r.lastErr != nil {
		run.LastError = r.lastErr.Error()
	}
	if action == "refresh" {
		run.Status = r.fetcher.Merged().Status
		for _, source := range r.fetcher.Sources() {
			s := database.Source{URI: source.URI, Status: source.Status, Timestamp: source.Timestamp}
			if source.Err != nil {
				s.Error = source.Err.Error()
			}
			run.Sources = append(run.Sources, s)
		}
	}
	if _, dbErr := r.options.History.SaveRun(run); dbErr != nil {
		log.Error("Failed to save run.", "err", dbErr)
	}
}

func describe(record parser.Record) string {
	if record.Kind == parser.KindRange {
		return record.Range.CIDR
	}
	return "AS" + strconv.FormatInt(record.Asn.ASN, 10)
}

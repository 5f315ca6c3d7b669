package feed

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/charmbracelet/log"
	"github.com/nylssoft/godrop/internal/parser"
)

type fetcher_impl struct {
	sources   []string
	userAgent string
	client    *http.Client
	merged    Result
	results   []Result
}

func (f *fetcher_impl) Reset() {
	f.merged = Result{}
	f.results = nil
}

func (f *fetcher_impl) Merged() Result {
	return f.merged
}

func (f *fetcher_impl) Sources() []Result {
	return f.results
}

func (f *fetcher_impl) FetchAll() Result {
	for _, uri := range f.sources {
		f.Fetch(uri)
	}
	return f.merged
}

func (f *fetcher_impl) Fetch(uri string) Result {
	res := f.fetch(uri)
	if res.Err != nil {
		log.Error("Failed to fetch feed.", "uri", uri, "status", res.Status, "err", res.Err)
	} else {
		log.Info("Fetched feed.", "uri", uri, "status", res.Status, "timestamp", res.Timestamp, "records", len(res.Records))
	}
	f.merge(res)
	return res
}

func (f *fetcher_impl) merge(res Result) {
	if res.Status > f.merged.Status {
		f.merged.Status = res.Status
	}
	if res.Timestamp > f.merged.Timestamp {
		f.merged.Timestamp = res.Timestamp
	}
	if res.Err != nil {
		f.merged.Err = res.Err
	}
	f.merged.Records = append(f.merged.Records, res.Records...)
	source := res
	source.Records = nil
	f.results = append(f.results, source)
}

func (f *fetcher_impl) fetch(uri string) Result {
	res := Result{URI: uri, Timestamp: -1}
	u, err := url.Parse(uri)
	if err == nil {
		err = validateURL(u, true)
	}
	if err != nil {
		res.Err = fmt.Errorf("feed: %w", err)
		return res
	}
	var payload []byte
	if u.Scheme == "file" {
		payload, res.Status, res.Timestamp, err = readFile(u.Path)
	} else {
		payload, res.Status, res.Timestamp, err = f.get(u)
	}
	if err != nil {
		res.Err = fmt.Errorf("feed: %s: %w", u.Redacted(), err)
		return res
	}
	if res.Status != http.StatusOK {
		res.Err = fmt.Errorf("feed: %s: unexpected status %d %s", u.Redacted(), res.Status, http.StatusText(res.Status))
		return res
	}
	if len(payload) > 0 {
		res.Records = parser.ParseLines(string(payload))
	}
	return res
}

func (f *fetcher_impl) get(u *url.URL) ([]byte, int, int64, error) {
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, -1, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, -1, err
	}
	defer resp.Body.Close()
	timestamp := int64(-1)
	if lastModified, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		timestamp = lastModified.Unix()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, timestamp, nil
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, MaxPayloadSize+1))
	if err != nil {
		return nil, resp.StatusCode, timestamp, err
	}
	if len(payload) > MaxPayloadSize {
		return nil, resp.StatusCode, timestamp, fmt.Errorf("payload exceeds %d bytes", MaxPayloadSize)
	}
	return payload, resp.StatusCode, timestamp, nil
}

func readFile(filename string) ([]byte, int, int64, error) {
	fileInfo, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return nil, http.StatusNotFound, -1, nil
	}
	if err != nil {
		return nil, 0, -1, err
	}
	if fileInfo.Size() > MaxPayloadSize {
		return nil, 0, -1, fmt.Errorf("payload exceeds %d bytes", MaxPayloadSize)
	}
	payload, err := os.ReadFile(filename)
	if err != nil {
		return nil, 0, -1, err
	}
	return payload, http.StatusOK, fileInfo.ModTime().Unix(), nil
}

package parser

import (
	"strings"
)

type Kind int

const (
	KindMalformed Kind = iota
	KindRange
	KindAsn
	KindMetadata
)

func (k Kind) String() string {
	switch k {
	case KindRange:
		return "range"
	case KindAsn:
		return "asn"
	case KindMetadata:
		return "metadata"
	}
	return "malformed"
}

// Network range listed in drop_v4.json or drop_v6.json.
type Range struct {
	CIDR  string
	SBLID string
	RIR   string
}

// Autonomous system listed in asndrop.json.
type Asn struct {
	ASN         int64
	RIR         string
	Domain      string
	CountryCode string
	ASName      string
}

// Trailing metadata line of a feed.
type Metadata struct {
	Timestamp int64
	Size      int64
	Records   int64
	Copyright string
	Terms     string
}

// A single decoded feed line. Only the payload matching Kind is set.
type Record struct {
	Kind     Kind
	Range    Range
	Asn      Asn
	Metadata Metadata
}

// Returns the domain of an ASN entry or an empty string for all other records.
func (r Record) Domain() string {
	if r.Kind == KindAsn {
		return r.Asn.Domain
	}
	return ""
}

// Decodes a single feed line. Lines that cannot be decoded yield a record of kind KindMalformed.
func Parse(line string) Record {
	return parseLine(line)
}

// Splits the payload into lines and decodes each line independently.
func ParseLines(payload string) []Record {
	payload = strings.ReplaceAll(payload, "\r", "")
	lines := strings.Split(payload, "\n")
	for len(lines) > 0 && len(strings.TrimSpace(lines[len(lines)-1])) == 0 {
		lines = lines[:len(lines)-1]
	}
	records := make([]Record, 0, len(lines))
	for _, line := range lines {
		records = append(records, Parse(line))
	}
	return records
}

package parser

import (
	"encoding/json"
	"strings"
)

type line struct {
	CIDR      *string `json:"cidr"`
	SBLID     string  `json:"sblid"`
	RIR       string  `json:"rir"`
	ASN       *int64  `json:"asn"`
	Domain    string  `json:"domain"`
	CC        string  `json:"cc"`
	ASName    string  `json:"asname"`
	Type      string  `json:"type"`
	Timestamp int64   `json:"timestamp"`
	Size      int64   `json:"size"`
	Records   int64   `json:"records"`
	Copyright string  `json:"copyright"`
	Terms     string  `json:"terms"`
}

func parseLine(str string) Record {
	str = strings.TrimSpace(str)
	if len(str) == 0 {
		return Record{}
	}
	var l line
	if err := json.Unmarshal([]byte(str), &l); err != nil {
		return Record{}
	}
	switch {
	case l.CIDR != nil:
		return Record{Kind: KindRange, Range: Range{CIDR: *l.CIDR, SBLID: l.SBLID, RIR: l.RIR}}
	case l.ASN != nil:
		return Record{Kind: KindAsn, Asn: Asn{ASN: *l.ASN, RIR: l.RIR, Domain: l.Domain, CountryCode: l.CC, ASName: l.ASName}}
	case l.Type == "metadata":
		return Record{Kind: KindMetadata, Metadata: Metadata{Timestamp: l.Timestamp, Size: l.Size, Records: l.Records, Copyright: l.Copyright, Terms: l.Terms}}
	}
	return Record{}
}

package zone

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

type sink_impl struct {
	options Options
	domains []string
	seen    map[string]bool
}

func (sink *sink_impl) Add(domain string) (bool, error) {
	name, err := normalize(domain)
	if err != nil {
		return false, err
	}
	if sink.seen[name] {
		return false, nil
	}
	sink.seen[name] = true
	sink.domains = append(sink.domains, name)
	return true, nil
}

func (sink *sink_impl) Domains() []string {
	return sink.domains
}

func (sink *sink_impl) Reset() {
	sink.domains = nil
	sink.seen = make(map[string]bool)
}

func (sink *sink_impl) Write(serial int64) error {
	if serial <= 0 {
		serial = time.Now().Unix()
	}
	if len(sink.options.AclFilename) > 0 {
		if err := writeFile(sink.options.AclFilename, sink.acl()); err != nil {
			return err
		}
		log.Info("Wrote domain list.", "file", sink.options.AclFilename, "domains", len(sink.domains))
	}
	if len(sink.options.RpzFilename) > 0 {
		data, err := sink.rpz(uint32(serial))
		if err != nil {
			return err
		}
		if err := writeFile(sink.options.RpzFilename, data); err != nil {
			return err
		}
		log.Info("Wrote response policy zone.", "file", sink.options.RpzFilename, "origin", sink.options.Origin, "domains", len(sink.domains))
	}
	return nil
}

func (sink *sink_impl) acl() string {
	var sb strings.Builder
	sb.WriteString("# domains of Spamhaus ASN-DROP entries\n")
	for _, domain := range sink.domains {
		sb.WriteString(domain)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (sink *sink_impl) rpz(serial uint32) (string, error) {
	origin := dns.Fqdn(strings.ToLower(sink.options.Origin))
	if _, ok := dns.IsDomainName(origin); !ok || origin == "." {
		return "", fmt.Errorf("invalid zone origin '%s'", sink.options.Origin)
	}
	ttl := sink.options.TTL
	header := func(name string, rrtype uint16) dns.RR_Header {
		return dns.RR_Header{Name: name, Rrtype: rrtype, Class: dns.ClassINET, Ttl: ttl}
	}
	rrs := []dns.RR{
		&dns.SOA{Hdr: header(origin, dns.TypeSOA), Ns: "localhost.", Mbox: "hostmaster.localhost.",
			Serial: serial, Refresh: 3600, Retry: 600, Expire: 604800, Minttl: ttl},
		&dns.NS{Hdr: header(origin, dns.TypeNS), Ns: "localhost."},
	}
	for _, domain := range sink.domains {
		name := domain + "." + origin
		// CNAME to the root is the RPZ action NXDOMAIN
		rrs = append(rrs,
			&dns.CNAME{Hdr: header(name, dns.TypeCNAME), Target: "."},
			&dns.CNAME{Hdr: header("*."+name, dns.TypeCNAME), Target: "."})
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "$TTL %d\n", ttl)
	for _, rr := range rrs {
		sb.WriteString(rr.String())
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func normalize(domain string) (string, error) {
	name := strings.TrimSuffix(strings.TrimSpace(domain), ".")
	if len(name) == 0 {
		return "", fmt.Errorf("invalid domain '%s'", domain)
	}
	name, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return "", fmt.Errorf("invalid domain '%s': %w", domain, err)
	}
	name = strings.ToLower(name)
	if _, ok := dns.IsDomainName(name); !ok || strings.ContainsAny(name, " \t;\"()") {
		return "", fmt.Errorf("invalid domain '%s'", domain)
	}
	return name, nil
}

// Replaces the file atomically.
func writeFile(filename string, data string) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	_, err = tmp.WriteString(data)
	if err == nil {
		err = tmp.Chmod(0644)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}

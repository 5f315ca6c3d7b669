package zone

// Collects domains of ASN entries and writes them to a domain list and a
// DNS response policy zone (RPZ) answering NXDOMAIN for each domain and its subdomains.
//
// Each domain is emitted exactly once in the order it was added.
//
// Use NewSink to create a new sink.
type Sink interface {
	// Adds a domain. Returns false if the domain was already added.
	// Returns an error if the domain is not a valid domain name.
	Add(domain string) (bool, error)
	// Returns the added domains in ASCII form.
	Domains() []string
	// Writes the configured files. The serial is used for the SOA record of the zone,
	// the current time is used if it is not positive.
	Write(serial int64) error
	// Removes all domains.
	Reset()
}

type Options struct {
	AclFilename string
	RpzFilename string
	Origin      string
	TTL         uint32
}

const DefaultTTL = 300

func NewSink(options Options) Sink {
	var sink sink_impl
	sink.options = options
	if sink.options.TTL == 0 {
		sink.options.TTL = DefaultTTL
	}
	sink.seen = make(map[string]bool)
	return &sink
}

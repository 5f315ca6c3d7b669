package config

import (
	"time"

	"github.com/nylssoft/godrop/internal/nft"
	"github.com/nylssoft/godrop/internal/rule"
)

// Provides the configuration of a run. The values are resolved once by Init and
// do not change afterwards.
//
// Settings are read from an optional JSON or YAML config file, an optional .env
// file in the working directory and the environment. Environment variables
// overwrite the config file:
//
//	GODROP_FEEDS       comma separated feed URIs
//	GODROP_NO_IPV4     disables the IPv4 set
//	GODROP_NO_IPV6     disables the IPv6 set
//	GODROP_NO_TIMEOUT  disables element timeouts
//	GODROP_TIMEOUT     element timeout, e.g. 72h
//	GODROP_COUNTERS    enables or disables rule counters, e.g. true or false
//
// Use NewConfig to create a new config object.
type Config interface {
	// Reads the config file and the environment. The filename may be empty.
	Init(filename string) error
	IsVerbose() bool
	// Feed URIs consulted by refresh.
	Feeds() []string
	// Filter configuration for the nft table.
	FilterOptions() nft.Options
	// Rules for records that are not applied.
	SkipRules() []rule.Rule
	// Returns the sqlite database filename for the run history or an empty string.
	DatabaseFilename() string
	// Returns the filename for prometheus metrics in text format or an empty string.
	MetricsFilename() string
	// Returns the filename of the domain access control list or an empty string.
	AclFilename() string
	// Returns the filename of the response policy zone or an empty string.
	RpzFilename() string
	// Returns the origin of the response policy zone.
	RpzOrigin() string
	// Returns the interval used to batch change events in watch mode.
	WatchInterval() time.Duration
}

func NewConfig() Config {
	var cfg config_impl
	return &cfg
}

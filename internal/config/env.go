package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nylssoft/godrop/internal/nft"
)

const (
	envFeeds     = "GODROP_FEEDS"
	envNoIPv4    = "GODROP_NO_IPV4"
	envNoIPv6    = "GODROP_NO_IPV6"
	envNoTimeout = "GODROP_NO_TIMEOUT"
	envTimeout   = "GODROP_TIMEOUT"
	envCounters  = "GODROP_COUNTERS"
)

func applyEnv(options *nft.Options, feeds *[]string) error {
	if isSet(envNoIPv4) {
		options.EnableIPv4 = false
	}
	if isSet(envNoIPv6) {
		options.EnableIPv6 = false
	}
	if value := os.Getenv(envTimeout); len(value) > 0 {
		if err := parseTimeout(value, options); err != nil {
			return fmt.Errorf("%s: %w", envTimeout, err)
		}
	}
	if isSet(envNoTimeout) {
		options.UseTimeout = false
	}
	if value := os.Getenv(envCounters); len(value) > 0 {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: invalid value '%s'", envCounters, value)
		}
		options.UseCounters = b
	}
	if value := os.Getenv(envFeeds); len(value) > 0 {
		*feeds = nil
		for uri := range strings.SplitSeq(value, ",") {
			if uri = strings.TrimSpace(uri); len(uri) > 0 {
				*feeds = append(*feeds, uri)
			}
		}
	}
	return nil
}

// A variable counts as set if it has any value other than a false boolean.
func isSet(name string) bool {
	value := os.Getenv(name)
	if len(value) == 0 {
		return false
	}
	b, err := strconv.ParseBool(value)
	return err != nil || b
}

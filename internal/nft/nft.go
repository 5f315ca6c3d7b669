package nft

import (
	"errors"
	"fmt"
	"time"

	"github.com/nylssoft/godrop/internal/executer"
)

// Provides an idempotent interface to the nftables table holding the drop sets.
//
// The table contains one named interval set per address family (drop_ipv4, drop_ipv6)
// and the chains prerouting and postrouting with rules dropping traffic matching the sets.
// The state is never cached, each operation queries nft again.
//
// Requires root permissions.
//
// Use NewNft to create a new object.
type Nft interface {
	// Returns whether the table exists.
	TableExists() bool
	// Creates the table if it does not exist.
	EnsureTable() error
	// Creates the named set for the family if it does not exist. An existing set is not flushed.
	EnsureElementSet(family Family) error
	// Creates the prerouting and postrouting chains if they do not exist.
	// Drop rules are only added to a chain that has just been created.
	EnsureChains() error
	// Ensures table, sets of the enabled families and chains.
	Prepare() error
	// Flushes the sets of both families if they exist.
	// Returns whether the table exists and the last flush error.
	FlushSets() (bool, error)
	// Deletes the table if it exists. Returns whether the table no longer exists.
	DeleteAll() (bool, error)
	// Adds an address or prefix to the set of its family.
	// Returns an *InvalidAddressError or ErrFamilyDisabled without running any command.
	AddElement(cidr string) error
	// Returns the result of the latest nft invocation.
	LastResult() executer.Result
}

// Filter configuration, immutable for the lifetime of an Nft object.
type Options struct {
	Table       string
	Comment     string
	EnableIPv4  bool
	EnableIPv6  bool
	UseTimeout  bool
	Timeout     time.Duration
	UseCounters bool
}

const DefaultTimeout = 72 * time.Hour

func DefaultOptions() Options {
	return Options{
		Table:       "spamhaus",
		Comment:     "SPAMHAUS do not route or peer",
		EnableIPv4:  true,
		EnableIPv6:  true,
		UseTimeout:  true,
		Timeout:     DefaultTimeout,
		UseCounters: true,
	}
}

func (o Options) Enabled(family Family) bool {
	if family == FamilyIPv6 {
		return o.EnableIPv6
	}
	return o.EnableIPv4
}

func (o Options) Validate() error {
	if err := validateName(o.Table); err != nil {
		return fmt.Errorf("table: %w", err)
	}
	if err := validateComment(o.Comment); err != nil {
		return err
	}
	if o.UseTimeout && o.Timeout <= 0 {
		return fmt.Errorf("invalid element timeout %s", o.Timeout)
	}
	return nil
}

var ErrFamilyDisabled = errors.New("address family disabled")

// Returned when an nft command terminates with a non-zero exit code.
type ExecError struct {
	Command string
	Code    int
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("exec failed (code %d)", e.Code)
}

// Returned for addresses that are neither IPv4 nor IPv6.
type InvalidAddressError struct {
	Address string
	Err     error
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid IP '%s'", e.Address)
}

func (e *InvalidAddressError) Unwrap() error {
	return e.Err
}

// Creates a new nft object running nft commands with the specified executer.
func NewNft(e executer.Executer, options Options) (Nft, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	var nft nft_impl
	nft.executer = e
	nft.options = options
	if options.UseTimeout {
		nft.timeout = FormatTimeout(options.Timeout)
	}
	return &nft, nil
}

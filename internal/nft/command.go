package nft

import (
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Family int

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

var Families = []Family{FamilyIPv4, FamilyIPv6}

func (f Family) String() string {
	if f == FamilyIPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// Name of the named set holding the prefixes of the family.
func (f Family) SetName() string {
	return "drop_" + f.String()
}

func (f Family) addrType() string {
	return f.String() + "_addr"
}

func (f Family) match() string {
	if f == FamilyIPv6 {
		return "ip6"
	}
	return "ip"
}

// An nft invocation. Args never pass through a shell.
type Command struct {
	args []string
}

func (c Command) Args() []string {
	return c.args
}

func (c Command) String() string {
	return "nft " + strings.Join(c.args, " ")
}

type chain struct {
	name     string
	hook     string
	priority int
	matches  []string
}

// prerouting drops traffic from and to listed networks, postrouting drops traffic to them
var chains = []chain{
	{name: "prerouting", hook: "prerouting", priority: -100, matches: []string{"saddr", "daddr"}},
	{name: "postrouting", hook: "postrouting", priority: 100, matches: []string{"daddr"}},
}

var validNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func validateName(name string) error {
	if !validNameRegex.MatchString(name) {
		return fmt.Errorf("invalid name: '%s'", name)
	}
	return nil
}

func validateComment(comment string) error {
	if len(comment) > 128 || strings.ContainsAny(comment, "\";{}\n\r") {
		return fmt.Errorf("invalid comment: '%s'", comment)
	}
	return nil
}

// Parses an address or prefix and returns its canonical masked form together with its family.
func ParsePrefix(cidr string) (string, Family, error) {
	cidr = strings.TrimSpace(cidr)
	var prefix netip.Prefix
	var err error
	if strings.Contains(cidr, "/") {
		prefix, err = netip.ParsePrefix(cidr)
	} else {
		var addr netip.Addr
		addr, err = netip.ParseAddr(cidr)
		if err == nil && addr.Zone() != "" {
			err = errors.New("zone not allowed")
		}
		if err == nil {
			prefix = netip.PrefixFrom(addr, addr.BitLen())
		}
	}
	if err != nil {
		return "", FamilyIPv4, &InvalidAddressError{Address: cidr, Err: err}
	}
	family := FamilyIPv6
	if prefix.Addr().Is4() {
		family = FamilyIPv4
	}
	prefix = prefix.Masked()
	if prefix.Bits() == prefix.Addr().BitLen() {
		return prefix.Addr().String(), family, nil
	}
	return prefix.String(), family, nil
}

// Formats a duration the way nft expects element timeouts, e.g. 72h or 1h30m.
func FormatTimeout(d time.Duration) string {
	if d < time.Second {
		return "1s"
	}
	var sb strings.Builder
	hours := int64(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int64(d / time.Minute)
	d -= time.Duration(minutes) * time.Minute
	seconds := int64(d / time.Second)
	if hours > 0 {
		sb.WriteString(strconv.FormatInt(hours, 10) + "h")
	}
	if minutes > 0 {
		sb.WriteString(strconv.FormatInt(minutes, 10) + "m")
	}
	if seconds > 0 {
		sb.WriteString(strconv.FormatInt(seconds, 10) + "s")
	}
	return sb.String()
}

func listTable(table string) Command {
	return Command{[]string{"list", "table", "inet", table}}
}

func addTable(table string) Command {
	return Command{[]string{"add", "table", "inet", table}}
}

func deleteTable(table string) Command {
	return Command{[]string{"delete", "table", "inet", table}}
}

func listSet(table string, f Family) Command {
	return Command{[]string{"list", "set", "inet", table, f.SetName()}}
}

func addSet(table string, f Family, timeout bool, comment string) Command {
	flags := "interval"
	if timeout {
		flags += ",timeout"
	}
	return Command{[]string{"add", "set", "inet", table, f.SetName(), "{",
		"type", f.addrType() + ";",
		"flags", flags + ";",
		"auto-merge;",
		"comment", "\"" + comment + "\";",
		"}"}}
}

func flushSet(table string, f Family) Command {
	return Command{[]string{"flush", "set", "inet", table, f.SetName()}}
}

func listChain(table string, c chain) Command {
	return Command{[]string{"list", "chain", "inet", table, c.name}}
}

// negative priorities would be taken for options without the leading --
func addChain(table string, c chain) Command {
	return Command{[]string{"--", "add", "chain", "inet", table, c.name, "{",
		"type", "filter",
		"hook", c.hook,
		"priority", strconv.Itoa(c.priority) + ";",
		"}"}}
}

func addRule(table string, c chain, f Family, match string, counter bool) Command {
	args := []string{"add", "rule", "inet", table, c.name, f.match(), match, "@" + f.SetName()}
	if counter {
		args = append(args, "counter")
	}
	args = append(args, "drop")
	return Command{args}
}

// prefix must be the canonical form returned by ParsePrefix
func addElement(table string, f Family, prefix string, timeout string) Command {
	args := []string{"add", "element", "inet", table, f.SetName(), "{", prefix}
	if len(timeout) > 0 {
		args = append(args, "timeout", timeout)
	}
	args = append(args, "}")
	return Command{args}
}

package nft

import (
	"errors"
	"testing"
	"time"

	"github.com/nylssoft/godrop/internal/nft/nfttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNft(t *testing.T, options Options) (Nft, *nfttest.Fake) {
	fake := nfttest.NewFake()
	nft, err := NewNft(fake, options)
	require.NoError(t, err)
	return nft, fake
}

func TestEnsureTable(t *testing.T) {
	nft, fake := newTestNft(t, DefaultOptions())
	assert.False(t, nft.TableExists())
	assert.NoError(t, nft.EnsureTable())
	assert.NoError(t, nft.EnsureTable())
	assert.Equal(t, 1, fake.Count("add table inet spamhaus"))
	assert.True(t, nft.TableExists())
}

func TestPrepare(t *testing.T) {
	nft, fake := newTestNft(t, DefaultOptions())
	require.NoError(t, nft.Prepare())
	assert.Equal(t, []string{
		"add table inet spamhaus",
		`add set inet spamhaus drop_ipv4 { type ipv4_addr; flags interval,timeout; auto-merge; comment "SPAMHAUS do not route or peer"; }`,
		`add set inet spamhaus drop_ipv6 { type ipv6_addr; flags interval,timeout; auto-merge; comment "SPAMHAUS do not route or peer"; }`,
		"add chain inet spamhaus prerouting { type filter hook prerouting priority -100; }",
		"add rule inet spamhaus prerouting ip saddr @drop_ipv4 counter drop",
		"add rule inet spamhaus prerouting ip daddr @drop_ipv4 counter drop",
		"add rule inet spamhaus prerouting ip6 saddr @drop_ipv6 counter drop",
		"add rule inet spamhaus prerouting ip6 daddr @drop_ipv6 counter drop",
		"add chain inet spamhaus postrouting { type filter hook postrouting priority 100; }",
		"add rule inet spamhaus postrouting ip daddr @drop_ipv4 counter drop",
		"add rule inet spamhaus postrouting ip6 daddr @drop_ipv6 counter drop",
	}, fake.Mutations())

	// second run only queries
	fake.Commands = nil
	require.NoError(t, nft.Prepare())
	assert.Empty(t, fake.Mutations())
	assert.Equal(t, 4, len(fake.Chains["prerouting"]))
	assert.Equal(t, 2, len(fake.Chains["postrouting"]))
}

func TestPrepareWithoutTimeoutAndCounters(t *testing.T) {
	options := DefaultOptions()
	options.UseTimeout = false
	options.UseCounters = false
	options.EnableIPv6 = false
	nft, fake := newTestNft(t, options)
	require.NoError(t, nft.Prepare())
	assert.Equal(t, 1, fake.Count(`add set inet spamhaus drop_ipv4 { type ipv4_addr; flags interval; auto-merge;`))
	assert.Equal(t, 0, fake.Count("add set inet spamhaus drop_ipv6"))
	assert.Equal(t, []string{"ip saddr @drop_ipv4 drop", "ip daddr @drop_ipv4 drop"}, fake.Chains["prerouting"])
	assert.Equal(t, []string{"ip daddr @drop_ipv4 drop"}, fake.Chains["postrouting"])
	assert.ErrorIs(t, nft.EnsureElementSet(FamilyIPv6), ErrFamilyDisabled)
}

func TestEnsureElementSetDoesNotFlush(t *testing.T) {
	nft, fake := newTestNft(t, DefaultOptions())
	require.NoError(t, nft.Prepare())
	require.NoError(t, nft.AddElement("203.0.113.0/24"))
	require.NoError(t, nft.EnsureElementSet(FamilyIPv4))
	assert.Equal(t, []string{"203.0.113.0/24"}, fake.Sets["drop_ipv4"])
	assert.Equal(t, 0, fake.Count("flush"))
}

func TestEnsureChainsDoesNotReconcileRules(t *testing.T) {
	nft, fake := newTestNft(t, DefaultOptions())
	require.NoError(t, nft.Prepare())
	fake.Chains["prerouting"] = nil
	require.NoError(t, nft.EnsureChains())
	assert.Empty(t, fake.Chains["prerouting"])
}

func TestAddElementIPv4(t *testing.T) {
	nft, fake := newTestNft(t, DefaultOptions())
	require.NoError(t, nft.Prepare())
	fake.Commands = nil
	for _, cidr := range []string{"203.0.113.0/24", "10.0.0.0/8", "192.0.2.1", "198.51.100.7/24"} {
		fake.Commands = nil
		assert.NoError(t, nft.AddElement(cidr))
		assert.Equal(t, 1, fake.Count("add element inet spamhaus drop_ipv4 {"), cidr)
		assert.Equal(t, 0, fake.Count("add element inet spamhaus drop_ipv6"), cidr)
	}
	assert.Equal(t, []string{"203.0.113.0/24", "10.0.0.0/8", "192.0.2.1", "198.51.100.0/24"}, fake.Sets["drop_ipv4"])
	assert.Equal(t, "add element inet spamhaus drop_ipv4 { 198.51.100.0/24 timeout 72h }", fake.Commands[0])
}

func TestAddElementIPv6(t *testing.T) {
	nft, fake := newTestNft(t, DefaultOptions())
	require.NoError(t, nft.Prepare())
	for _, cidr := range []string{"2a14:7c3::/32", "2001:db8::1", "::ffff:192.0.2.0/120"} {
		fake.Commands = nil
		assert.NoError(t, nft.AddElement(cidr))
		assert.Equal(t, 1, fake.Count("add element inet spamhaus drop_ipv6 {"), cidr)
		assert.Equal(t, 0, fake.Count("add element inet spamhaus drop_ipv4"), cidr)
	}
}

func TestAddElementInvalid(t *testing.T) {
	nft, fake := newTestNft(t, DefaultOptions())
	require.NoError(t, nft.Prepare())
	fake.Commands = nil
	for _, cidr := range []string{"", "invalid", "300.1.1.1/24", "10.0.0.0/33", "1.2.3.4/24 } ; delete table inet spamhaus", "fe80::1%eth0"} {
		err := nft.AddElement(cidr)
		var invalid *InvalidAddressError
		assert.True(t, errors.As(err, &invalid), cidr)
	}
	assert.Empty(t, fake.Commands)
}

func TestAddElementDisabledFamily(t *testing.T) {
	options := DefaultOptions()
	options.EnableIPv4 = false
	nft, fake := newTestNft(t, options)
	require.NoError(t, nft.Prepare())
	fake.Commands = nil
	assert.ErrorIs(t, nft.AddElement("203.0.113.0/24"), ErrFamilyDisabled)
	assert.Empty(t, fake.Commands)
	assert.NoError(t, nft.AddElement("2001:db8::/32"))
}

func TestAddElementDuplicate(t *testing.T) {
	nft, fake := newTestNft(t, DefaultOptions())
	require.NoError(t, nft.Prepare())
	assert.NoError(t, nft.AddElement("203.0.113.0/24"))
	assert.NoError(t, nft.AddElement("203.0.113.0/24"))
	assert.Equal(t, 1, len(fake.Sets["drop_ipv4"]))
	assert.Equal(t, 1, nft.LastResult().ExitCode)
}

func TestAddElementFailure(t *testing.T) {
	nft, _ := newTestNft(t, DefaultOptions())
	// no set exists
	err := nft.AddElement("203.0.113.0/24")
	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 1, execErr.Code)
	assert.Equal(t, "exec failed (code 1)", err.Error())
	assert.Equal(t, 1, nft.LastResult().ExitCode)
	assert.Equal(t, []string{"Error: No such file or directory"}, nft.LastResult().Output)
}

func TestAddElementTimeout(t *testing.T) {
	options := DefaultOptions()
	options.Timeout = 90 * time.Minute
	nft, fake := newTestNft(t, options)
	require.NoError(t, nft.Prepare())
	fake.Commands = nil
	require.NoError(t, nft.AddElement("203.0.113.0/24"))
	assert.Equal(t, "add element inet spamhaus drop_ipv4 { 203.0.113.0/24 timeout 1h30m }", fake.Commands[0])

	options.UseTimeout = false
	nft, fake = newTestNft(t, options)
	require.NoError(t, nft.Prepare())
	fake.Commands = nil
	require.NoError(t, nft.AddElement("203.0.113.0/24"))
	assert.Equal(t, "add element inet spamhaus drop_ipv4 { 203.0.113.0/24 }", fake.Commands[0])
}

func TestFlushSets(t *testing.T) {
	nft, fake := newTestNft(t, DefaultOptions())
	require.NoError(t, nft.Prepare())
	require.NoError(t, nft.AddElement("203.0.113.0/24"))
	require.NoError(t, nft.AddElement("2001:db8::/32"))

	exists, err := nft.FlushSets()
	assert.True(t, exists)
	assert.NoError(t, err)
	assert.Equal(t, 1, fake.Count("flush set inet spamhaus drop_ipv4"))
	assert.Equal(t, 1, fake.Count("flush set inet spamhaus drop_ipv6"))
	assert.Empty(t, fake.Sets["drop_ipv4"])
	assert.Empty(t, fake.Sets["drop_ipv6"])

	// missing set is skipped quietly
	delete(fake.Sets, "drop_ipv6")
	fake.Commands = nil
	exists, err = nft.FlushSets()
	assert.True(t, exists)
	assert.NoError(t, err)
	assert.Equal(t, 1, fake.Count("flush set inet spamhaus drop_ipv4"))
	assert.Equal(t, 0, fake.Count("flush set inet spamhaus drop_ipv6"))

	// flush failure is reported
	fake.Fail = []string{"flush set inet spamhaus drop_ipv4"}
	exists, err = nft.FlushSets()
	assert.True(t, exists)
	assert.Error(t, err)
}

func TestFlushSetsWithoutTable(t *testing.T) {
	nft, fake := newTestNft(t, DefaultOptions())
	exists, err := nft.FlushSets()
	assert.False(t, exists)
	assert.NoError(t, err)
	assert.Equal(t, 0, fake.Count("flush"))
}

func TestDeleteAll(t *testing.T) {
	nft, fake := newTestNft(t, DefaultOptions())
	deleted, err := nft.DeleteAll()
	assert.True(t, deleted)
	assert.NoError(t, err)
	assert.Equal(t, 0, fake.Count("delete table"))

	require.NoError(t, nft.Prepare())
	deleted, err = nft.DeleteAll()
	assert.True(t, deleted)
	assert.NoError(t, err)
	assert.Equal(t, 1, fake.Count("delete table inet spamhaus"))
	assert.False(t, nft.TableExists())

	require.NoError(t, nft.Prepare())
	fake.Fail = []string{"delete table"}
	deleted, err = nft.DeleteAll()
	assert.False(t, deleted)
	assert.Error(t, err)
}

func TestOptionsValidate(t *testing.T) {
	options := DefaultOptions()
	assert.NoError(t, options.Validate())
	options.Table = "spamhaus; flush ruleset"
	_, err := NewNft(nfttest.NewFake(), options)
	assert.Error(t, err)
	options = DefaultOptions()
	options.Comment = `evil"; flush ruleset; "`
	assert.Error(t, options.Validate())
	options = DefaultOptions()
	options.Timeout = 0
	assert.Error(t, options.Validate())
	options.UseTimeout = false
	assert.NoError(t, options.Validate())
}

func TestParsePrefix(t *testing.T) {
	prefix, family, err := ParsePrefix(" 223.254.0.0/16 ")
	assert.NoError(t, err)
	assert.Equal(t, "223.254.0.0/16", prefix)
	assert.Equal(t, FamilyIPv4, family)

	prefix, family, err = ParsePrefix("2A14:7C3::/32")
	assert.NoError(t, err)
	assert.Equal(t, "2a14:7c3::/32", prefix)
	assert.Equal(t, FamilyIPv6, family)

	prefix, _, err = ParsePrefix("192.0.2.1/32")
	assert.NoError(t, err)
	assert.Equal(t, "192.0.2.1", prefix)

	_, _, err = ParsePrefix("192.0.2")
	assert.Error(t, err)

	// zoned addresses are rejected, not stripped
	for _, zoned := range []string{"fe80::1%eth0", "fe80::%eth0/64"} {
		_, _, err = ParsePrefix(zoned)
		var invalid *InvalidAddressError
		require.True(t, errors.As(err, &invalid), zoned)
		assert.Equal(t, zoned, invalid.Address)
	}
}

func TestFormatTimeout(t *testing.T) {
	assert.Equal(t, "72h", FormatTimeout(72*time.Hour))
	assert.Equal(t, "1h30m", FormatTimeout(90*time.Minute))
	assert.Equal(t, "45s", FormatTimeout(45*time.Second))
	assert.Equal(t, "1s", FormatTimeout(time.Millisecond))
	assert.Equal(t, "2h1s", FormatTimeout(2*time.Hour+time.Second))
}

func TestCommandString(t *testing.T) {
	cmd := addChain("spamhaus", chains[0])
	assert.Equal(t, "--", cmd.Args()[0])
	assert.Equal(t, "nft -- add chain inet spamhaus prerouting { type filter hook prerouting priority -100; }", cmd.String())
}

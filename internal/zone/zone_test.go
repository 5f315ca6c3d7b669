package zone

import (
	"os"
	"path"
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd(t *testing.T) {
	sink := NewSink(Options{})
	added, err := sink.Add("62yun.com")
	assert.NoError(t, err)
	assert.True(t, added)
	added, err = sink.Add("62YUN.com.")
	assert.NoError(t, err)
	assert.False(t, added)
	added, err = sink.Add("bücher.example")
	assert.NoError(t, err)
	assert.True(t, added)
	for _, invalid := range []string{"", " ", "bad domain.com", "evil.com; rm", "a..b"} {
		_, err = sink.Add(invalid)
		assert.Error(t, err, invalid)
	}
	assert.Equal(t, []string{"62yun.com", "xn--bcher-kva.example"}, sink.Domains())

	sink.Reset()
	assert.Empty(t, sink.Domains())
	added, err = sink.Add("62yun.com")
	assert.NoError(t, err)
	assert.True(t, added)
}

func TestWrite(t *testing.T) {
	tempDir := t.TempDir()
	aclFilename := path.Join(tempDir, "spamhaus.acl")
	rpzFilename := path.Join(tempDir, "db.rpz.spamhaus")
	sink := NewSink(Options{AclFilename: aclFilename, RpzFilename: rpzFilename, Origin: "rpz.example.org"})
	_, err := sink.Add("62yun.com")
	require.NoError(t, err)
	_, err = sink.Add("example.net")
	require.NoError(t, err)
	require.NoError(t, sink.Write(1727686353))

	data, err := os.ReadFile(aclFilename)
	require.NoError(t, err)
	assert.Equal(t, "# domains of Spamhaus ASN-DROP entries\n62yun.com\nexample.net\n", string(data))

	data, err = os.ReadFile(rpzFilename)
	require.NoError(t, err)
	zp := dns.NewZoneParser(strings.NewReader(string(data)), "", rpzFilename)
	var rrs []dns.RR
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		rrs = append(rrs, rr)
	}
	require.NoError(t, zp.Err())
	require.Equal(t, 6, len(rrs))
	soa, ok := rrs[0].(*dns.SOA)
	require.True(t, ok)
	assert.Equal(t, uint32(1727686353), soa.Serial)
	assert.Equal(t, "rpz.example.org.", soa.Hdr.Name)
	names := []string{}
	for _, rr := range rrs[2:] {
		cname, ok := rr.(*dns.CNAME)
		require.True(t, ok)
		assert.Equal(t, ".", cname.Target)
		names = append(names, cname.Hdr.Name)
	}
	assert.Equal(t, []string{
		"62yun.com.rpz.example.org.", "*.62yun.com.rpz.example.org.",
		"example.net.rpz.example.org.", "*.example.net.rpz.example.org.",
	}, names)

	// files are replaced
	sink = NewSink(Options{AclFilename: aclFilename})
	require.NoError(t, sink.Write(0))
	data, err = os.ReadFile(aclFilename)
	require.NoError(t, err)
	assert.Equal(t, "# domains of Spamhaus ASN-DROP entries\n", string(data))
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Equal(t, 2, len(entries))
}

func TestWriteInvalidOrigin(t *testing.T) {
	sink := NewSink(Options{RpzFilename: path.Join(t.TempDir(), "db.rpz"), Origin: "."})
	assert.Error(t, sink.Write(1))
}

package config

import (
	"os"
	"path"
	"testing"
	"text/template"
	"time"

	"github.com/nylssoft/godrop/internal/feed"
	"github.com/nylssoft/godrop/internal/nft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDefaults(t *testing.T) {
	config := NewConfig()
	require.NoError(t, config.Init(""))
	options := config.FilterOptions()
	assert.Equal(t, "spamhaus", options.Table)
	assert.Equal(t, hostSupports(nft.FamilyIPv4), options.EnableIPv4)
	assert.Equal(t, hostSupports(nft.FamilyIPv6), options.EnableIPv6)
	assert.True(t, options.UseTimeout)
	assert.Equal(t, 72*time.Hour, options.Timeout)
	assert.True(t, options.UseCounters)
	assert.Equal(t, feed.DefaultSources, config.Feeds())
	assert.Equal(t, defaultOrigin, config.RpzOrigin())
	assert.Equal(t, 60*time.Second, config.WatchInterval())
	assert.Empty(t, config.DatabaseFilename())
	assert.Empty(t, config.SkipRules())
	assert.False(t, config.IsVerbose())
}

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	filename := path.Join(tempDir, "test-invalid.json")

	config := NewConfig()
	assert.NotNil(t, config)

	// file not found
	err := config.Init("filedoesnotexist.json")
	assert.Error(t, err)

	// json parse error
	err = os.WriteFile(filename, []byte(`content`), 0666)
	require.NoError(t, err)
	err = config.Init(filename)
	assert.Error(t, err)

	logfile := path.Join(tempDir, "test.log")
	dbfile := path.Join(tempDir, "test.db")
	filename = path.Join(tempDir, "config.json")
	a := configArgs{LogFilename: logfile, DatabaseFilename: dbfile, Timeout: "24h"}

	// missing rule name
	a.RuleCondition = "eq(rir,'arin')"
	createConfigFile(t, filename, a)
	err = config.Init(filename)
	assert.Error(t, err)

	// missing condition
	a.RuleName = "arin"
	a.RuleCondition = ""
	createConfigFile(t, filename, a)
	err = config.Init(filename)
	assert.Error(t, err)

	// invalid condition
	a.RuleCondition = "eq(rir,arin)"
	createConfigFile(t, filename, a)
	err = config.Init(filename)
	assert.Error(t, err)

	// invalid timeout
	a.RuleCondition = "eq(rir,'arin')"
	a.Timeout = "three days"
	createConfigFile(t, filename, a)
	err = config.Init(filename)
	assert.Error(t, err)

	// log file cannot be written
	a.Timeout = "24h"
	a.LogFilename = path.Join(tempDir, "missing", "test.log")
	createConfigFile(t, filename, a)
	err = config.Init(filename)
	assert.Error(t, err)

	// valid config, no error
	a.LogFilename = logfile
	createConfigFile(t, filename, a)
	err = config.Init(filename)
	require.NoError(t, err)
	assert.True(t, config.IsVerbose())
	assert.Equal(t, dbfile, config.DatabaseFilename())
	assert.Equal(t, []string{"file:///var/lib/godrop/drop_v4.json", "https://www.spamhaus.org/drop/asndrop.json"}, config.Feeds())
	assert.Equal(t, "drop", config.FilterOptions().Table)
	assert.Equal(t, 24*time.Hour, config.FilterOptions().Timeout)
	assert.False(t, config.FilterOptions().UseCounters)
	assert.False(t, config.FilterOptions().EnableIPv6)
	assert.Equal(t, "/etc/bind/spamhaus.acl", config.AclFilename())
	assert.Equal(t, "/etc/bind/db.rpz.spamhaus", config.RpzFilename())
	assert.Equal(t, "rpz.example.org", config.RpzOrigin())
	assert.Equal(t, path.Join(tempDir, "godrop.prom"), config.MetricsFilename())
	assert.Equal(t, 5*time.Minute, config.WatchInterval())
	require.Equal(t, 1, len(config.SkipRules()))
	assert.Equal(t, "arin", config.SkipRules()[0].Name)

	// timeout disabled
	a.Timeout = "off"
	createConfigFile(t, filename, a)
	require.NoError(t, config.Init(filename))
	assert.False(t, config.FilterOptions().UseTimeout)

	// rule name must be unique
	a.DuplicateRule = true
	createConfigFile(t, filename, a)
	err = config.Init(filename)
	assert.Error(t, err)
}

func TestInitYaml(t *testing.T) {
	filename := path.Join(t.TempDir(), "config.yaml")
	data := `feeds:
  - https://www.spamhaus.org/drop/drop_v4.json
filter:
  table: spamhaus_drop
  ipv6: false
  counters: true
  timeout: 3h
rules:
  skip:
    - name: lan
      condition: starts-with(cidr,'10.')
`
	require.NoError(t, os.WriteFile(filename, []byte(data), 0666))
	config := NewConfig()
	require.NoError(t, config.Init(filename))
	assert.Equal(t, []string{"https://www.spamhaus.org/drop/drop_v4.json"}, config.Feeds())
	assert.Equal(t, "spamhaus_drop", config.FilterOptions().Table)
	assert.False(t, config.FilterOptions().EnableIPv6)
	assert.Equal(t, 3*time.Hour, config.FilterOptions().Timeout)
	assert.Equal(t, "lan", config.SkipRules()[0].Name)

	require.NoError(t, os.WriteFile(filename, []byte("feeds: [unterminated"), 0666))
	assert.Error(t, config.Init(filename))
}

func TestInitEnvironment(t *testing.T) {
	t.Setenv(envNoIPv4, "1")
	t.Setenv(envNoIPv6, "false")
	t.Setenv(envTimeout, "12h")
	t.Setenv(envCounters, "false")
	t.Setenv(envFeeds, " file:///tmp/a.json, ,file:///tmp/b.json")
	config := NewConfig()
	require.NoError(t, config.Init(""))
	options := config.FilterOptions()
	assert.False(t, options.EnableIPv4)
	assert.Equal(t, hostSupports(nft.FamilyIPv6), options.EnableIPv6)
	assert.True(t, options.UseTimeout)
	assert.Equal(t, 12*time.Hour, options.Timeout)
	assert.False(t, options.UseCounters)
	assert.Equal(t, []string{"file:///tmp/a.json", "file:///tmp/b.json"}, config.Feeds())

	t.Setenv(envNoTimeout, "yes")
	require.NoError(t, config.Init(""))
	assert.False(t, config.FilterOptions().UseTimeout)

	t.Setenv(envCounters, "maybe")
	assert.Error(t, config.Init(""))
	t.Setenv(envCounters, "")
	t.Setenv(envTimeout, "-1h")
	assert.Error(t, config.Init(""))
}

type configArgs struct {
	LogFilename      string
	DatabaseFilename string
	Timeout          string
	RuleName         string
	RuleCondition    string
	DuplicateRule    bool
	MetricsFilename  string
}

func createConfigFile(t *testing.T, configFilename string, a configArgs) {
	data := `{
    "feeds": ["file:///var/lib/godrop/drop_v4.json", "https://www.spamhaus.org/drop/asndrop.json"],
    "filter": {
        "table": "drop",
        "ipv6": false,
        "timeout": "{{.Timeout}}",
        "counters": false
    },
    "zone": {
        "aclFilename": "/etc/bind/spamhaus.acl",
        "rpzFilename": "/etc/bind/db.rpz.spamhaus",
        "origin": "rpz.example.org"
    },
    "database": {
        "filename": "{{.DatabaseFilename}}"
    },
    "metrics": {
        "filename": "{{.MetricsFilename}}"
    },
    "logger": {
        "filename": "{{.LogFilename}}",
        "maxsize": 10,
        "maxage": 7,
        "verbose": true
    },
    "watch": {
        "interval": "5m"
    },
    "rules": {
        "skip": [
            {
                "name": "{{.RuleName}}",
                "condition": "{{.RuleCondition}}"
            }{{if .DuplicateRule}},
            {
                "name": "{{.RuleName}}",
                "condition": "{{.RuleCondition}}"
            }{{end}}
        ]
    }}`
	tmpl, err := template.New("test").Parse(data)
	require.NoError(t, err)
	file, err := os.Create(configFilename)
	require.NoError(t, err)
	a.MetricsFilename = path.Join(path.Dir(configFilename), "godrop.prom")
	err = tmpl.Execute(file, a)
	require.NoError(t, err)
	file.Close()
}

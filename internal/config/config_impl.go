package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/nylssoft/godrop/internal/feed"
	"github.com/nylssoft/godrop/internal/nft"
	"github.com/nylssoft/godrop/internal/rule"
	"gopkg.in/yaml.v3"
)

type configRule struct {
	Name      string `json:"name" yaml:"name"`
	Condition string `json:"condition" yaml:"condition"`
}

type config_impl struct {
	FeedURIs []string `json:"feeds" yaml:"feeds"`
	Filter   struct {
		Table    string `json:"table" yaml:"table"`
		Comment  string `json:"comment" yaml:"comment"`
		IPv4     *bool  `json:"ipv4" yaml:"ipv4"`
		IPv6     *bool  `json:"ipv6" yaml:"ipv6"`
		Timeout  string `json:"timeout" yaml:"timeout"`
		Counters *bool  `json:"counters" yaml:"counters"`
	} `json:"filter" yaml:"filter"`
	Zone struct {
		AclFilename string `json:"aclFilename" yaml:"aclFilename"`
		RpzFilename string `json:"rpzFilename" yaml:"rpzFilename"`
		Origin      string `json:"origin" yaml:"origin"`
	} `json:"zone" yaml:"zone"`
	Database struct {
		Filename string `json:"filename" yaml:"filename"`
	} `json:"database" yaml:"database"`
	Metrics struct {
		Filename string `json:"filename" yaml:"filename"`
	} `json:"metrics" yaml:"metrics"`
	Logger struct {
		Filename string `json:"filename" yaml:"filename"`
		MaxSize  int    `json:"maxsize" yaml:"maxsize"`
		MaxAge   int    `json:"maxage" yaml:"maxage"`
		Verbose  bool   `json:"verbose" yaml:"verbose"`
	} `json:"logger" yaml:"logger"`
	Watch struct {
		Interval string `json:"interval" yaml:"interval"`
	} `json:"watch" yaml:"watch"`
	Rules struct {
		Skip []configRule `json:"skip" yaml:"skip"`
	} `json:"rules" yaml:"rules"`
	// resolved values
	options  nft.Options
	rules    []rule.Rule
	interval time.Duration
}

const defaultOrigin = "rpz.spamhaus.local"

func (cfg *config_impl) Init(filename string) error {
	*cfg = config_impl{}
	if len(filename) > 0 {
		if err := cfg.read(filename); err != nil {
			return err
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	err := cfg.resolve()
	if err == nil {
		err = cfg.updateRules()
	}
	if err == nil && len(cfg.Logger.Filename) > 0 {
		err = canWriteFile(cfg.Logger.Filename, "log")
	}
	if err == nil && len(cfg.Database.Filename) > 0 {
		err = canWriteFile(cfg.Database.Filename, "database")
	}
	if err != nil {
		return err
	}
	setupLogger(cfg.Logger.Filename, cfg.Logger.MaxSize, cfg.Logger.MaxAge, cfg.Logger.Verbose)
	log.Info("godrop version " + feed.Version)
	log.Info("Loads Spamhaus DROP lists into nftables sets.")
	log.Info("Config", "file", filename, "table", cfg.options.Table, "ipv4", cfg.options.EnableIPv4, "ipv6", cfg.options.EnableIPv6,
		"timeout", timeoutString(cfg.options), "counters", cfg.options.UseCounters)
	for _, uri := range cfg.FeedURIs {
		log.Info("Feed", "uri", uri)
	}
	for _, r := range cfg.Rules.Skip {
		log.Info("Skip rule", "name", r.Name, "condition", r.Condition)
	}
	return nil
}

func (cfg *config_impl) IsVerbose() bool {
	return cfg.Logger.Verbose
}

func (cfg *config_impl) Feeds() []string {
	return cfg.FeedURIs
}

func (cfg *config_impl) FilterOptions() nft.Options {
	return cfg.options
}

func (cfg *config_impl) SkipRules() []rule.Rule {
	return cfg.rules
}

func (cfg *config_impl) DatabaseFilename() string {
	return cfg.Database.Filename
}

func (cfg *config_impl) MetricsFilename() string {
	return cfg.Metrics.Filename
}

func (cfg *config_impl) AclFilename() string {
	return cfg.Zone.AclFilename
}

func (cfg *config_impl) RpzFilename() string {
	return cfg.Zone.RpzFilename
}

func (cfg *config_impl) RpzOrigin() string {
	return cfg.Zone.Origin
}

func (cfg *config_impl) WatchInterval() time.Duration {
	return cfg.interval
}

func (cfg *config_impl) read(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w", filename, err)
	}
	return nil
}

// Applies defaults, config file values and environment variables in this order.
func (cfg *config_impl) resolve() error {
	options := nft.DefaultOptions()
	options.EnableIPv4 = hostSupports(nft.FamilyIPv4)
	options.EnableIPv6 = hostSupports(nft.FamilyIPv6)
	if len(cfg.Filter.Table) > 0 {
		options.Table = cfg.Filter.Table
	}
	if len(cfg.Filter.Comment) > 0 {
		options.Comment = cfg.Filter.Comment
	}
	if cfg.Filter.IPv4 != nil {
		options.EnableIPv4 = options.EnableIPv4 && *cfg.Filter.IPv4
	}
	if cfg.Filter.IPv6 != nil {
		options.EnableIPv6 = options.EnableIPv6 && *cfg.Filter.IPv6
	}
	if cfg.Filter.Counters != nil {
		options.UseCounters = *cfg.Filter.Counters
	}
	if len(cfg.Filter.Timeout) > 0 {
		if err := parseTimeout(cfg.Filter.Timeout, &options); err != nil {
			return err
		}
	}
	if err := applyEnv(&options, &cfg.FeedURIs); err != nil {
		return err
	}
	if len(cfg.FeedURIs) == 0 {
		cfg.FeedURIs = feed.DefaultSources
	}
	if len(cfg.Zone.Origin) == 0 {
		cfg.Zone.Origin = defaultOrigin
	}
	cfg.interval = 60 * time.Second
	if len(cfg.Watch.Interval) > 0 {
		d, err := time.ParseDuration(cfg.Watch.Interval)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid watch interval '%s'", cfg.Watch.Interval)
		}
		cfg.interval = d
	}
	if err := options.Validate(); err != nil {
		return err
	}
	cfg.options = options
	return nil
}

func (cfg *config_impl) updateRules() error {
	cfg.rules = nil
	names := map[string]bool{}
	for _, cr := range cfg.Rules.Skip {
		r, err := parseRule(cr)
		if err != nil {
			return err
		}
		if names[cr.Name] {
			return fmt.Errorf("rule name '%s' is not unique", cr.Name)
		}
		names[cr.Name] = true
		cfg.rules = append(cfg.rules, r)
	}
	return nil
}

func parseRule(cr configRule) (rule.Rule, error) {
	if len(cr.Name) == 0 {
		return rule.Rule{}, errors.New("missing 'name' in rule definition")
	}
	if len(cr.Condition) == 0 {
		return rule.Rule{}, errors.New("missing 'condition' in rule definition")
	}
	r, err := rule.NewRule(cr.Name, cr.Condition)
	if err != nil {
		return r, fmt.Errorf("failed to parse rule '%s': %s", cr.Name, err.Error())
	}
	return r, nil
}

// Accepts a duration or one of off, false, none to disable timeouts.
func parseTimeout(value string, options *nft.Options) error {
	switch strings.ToLower(value) {
	case "off", "false", "none":
		options.UseTimeout = false
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid element timeout '%s'", value)
	}
	options.UseTimeout = true
	options.Timeout = d
	return nil
}

func timeoutString(options nft.Options) string {
	if !options.UseTimeout {
		return "off"
	}
	return nft.FormatTimeout(options.Timeout)
}

func canWriteFile(filename string, desc string) error {
	if len(filename) == 0 {
		return fmt.Errorf("missing %s filename in config", desc)
	}
	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0640)
	if err == nil {
		file.Close()
	}
	return err
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/nylssoft/godrop/internal/config"
	"github.com/nylssoft/godrop/internal/database"
	"github.com/nylssoft/godrop/internal/executer"
	"github.com/nylssoft/godrop/internal/feed"
	"github.com/nylssoft/godrop/internal/metrics"
	"github.com/nylssoft/godrop/internal/nft"
	"github.com/nylssoft/godrop/internal/reconciler"
	"github.com/nylssoft/godrop/internal/zone"
)

var flagConfig = flag.String("config", "", "config file")
var flagCount = flag.Int("n", 10, "number of runs listed by history")

const usageText = `Usage: godrop [-config <config-file>] [-n <count>] <action>

Actions:
  prepare   create table, sets and chains
  refresh   fetch the DROP feeds and add their networks to the sets
  flush     remove all elements from the sets
  clear     delete the table
  watch     refresh whenever a file:// feed changes
  history   list the latest runs
  help      show this help
`

func main() {
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usageText) }
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	action := flag.Arg(0)
	switch action {
	case "help":
		fmt.Print(usageText)
		return
	case "prepare", "refresh", "flush", "clear", "watch":
		if err := checkEnvironment(runtime.GOOS, exec.LookPath); err != nil {
			fmt.Println("ERROR:", err)
			os.Exit(1)
		}
	case "history":
	default:
		fmt.Printf("ERROR: unknown action '%s'\n", action)
		flag.Usage()
		os.Exit(2)
	}
	cfg := config.NewConfig()
	if err := cfg.Init(*flagConfig); err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
	if action == "history" {
		os.Exit(history(cfg, *flagCount))
	}
	os.Exit(run(cfg, action))
}

func checkEnvironment(goos string, lookPath func(string) (string, error)) error {
	if goos != "linux" {
		return fmt.Errorf("unsupported operating system '%s', nftables requires linux", goos)
	}
	if _, err := lookPath("nft"); err != nil {
		return fmt.Errorf("nft binary not found: %w", err)
	}
	return nil
}

func run(cfg config.Config, action string) int {
	n, err := nft.NewNft(executer.NewExecuter(), cfg.FilterOptions())
	if err != nil {
		fmt.Println("ERROR:", err)
		return 1
	}
	options := reconciler.Options{
		SkipRules: cfg.SkipRules(),
		Metrics:   metrics.NewMetrics(cfg.MetricsFilename()),
	}
	if len(cfg.DatabaseFilename()) > 0 {
		db := database.NewDatabase(cfg.DatabaseFilename())
		defer db.Close()
		options.History = db
	}
	sink := zone.NewSink(zone.Options{
		AclFilename: cfg.AclFilename(),
		RpzFilename: cfg.RpzFilename(),
		Origin:      cfg.RpzOrigin(),
	})
	r := reconciler.NewReconciler(n, feed.NewFetcher(cfg.Feeds()), sink, options)
	switch action {
	case "prepare":
		err = r.Prepare()
	case "flush":
		err = r.Flush()
	case "clear":
		err = r.Clear()
	case "refresh":
		err = refresh(r)
	case "watch":
		return watch(cfg, r)
	}
	if err != nil {
		fmt.Println("ERROR:", err)
		return 1
	}
	return 0
}

func refresh(r reconciler.Reconciler) error {
	summary, err := r.Refresh()
	var fetchErr *reconciler.FetchError
	if errors.As(err, &fetchErr) {
		return fmt.Errorf("refresh aborted: %w", fetchErr)
	}
	if err != nil {
		return err
	}
	if lastErr := r.LastError(); lastErr != nil {
		log.Warn("Refresh completed with errors.", "invalid", summary.Invalid, "failed", summary.Failed, "err", lastErr)
	}
	return nil
}

func watch(cfg config.Config, r reconciler.Reconciler) int {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatal("Failed to create file watcher.", "err", err)
	}
	defer watcher.Close()
	configFilename := ""
	if len(*flagConfig) > 0 {
		configFilename, _ = filepath.Abs(*flagConfig)
	}
	files := watchedFiles(cfg.Feeds(), configFilename)
	for dir := range watchedDirs(files) {
		if err := watcher.Add(dir); err != nil {
			log.Fatal("Failed to add directory to file watcher.", "dir", dir, "err", err)
		}
	}
	if err := refresh(r); err != nil {
		log.Error("Failed to refresh.", "err", err)
	}
	ticker := time.NewTicker(cfg.WatchInterval())
	defer ticker.Stop()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	update := false
	for {
		select {
		case sig := <-stop:
			log.Info("Shutdown signal received.", "signal", sig)
			return 0
		case event := <-watcher.Events:
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)) {
				continue
			}
			name := filepath.Clean(event.Name)
			if name == configFilename {
				log.Warn("Config file changed, restart to apply.", "file", name)
			} else if !update && files[name] {
				update = true
				log.Debug("Detected modified feed. Refresh on next schedule.", "file", name)
			}
		case <-ticker.C:
			if update {
				update = false
				if err := refresh(r); err != nil {
					log.Error("Failed to refresh.", "err", err)
				}
			}
		case err := <-watcher.Errors:
			log.Error("Failed to watch directory.", "err", err)
		}
	}
}

// Returns the local files of file:// feeds and the config file.
func watchedFiles(feeds []string, configFilename string) map[string]bool {
	files := make(map[string]bool)
	for _, uri := range feeds {
		u, err := url.Parse(uri)
		if err != nil || u.Scheme != "file" || len(u.Path) == 0 {
			continue
		}
		files[filepath.Clean(u.Path)] = true
	}
	if len(configFilename) > 0 {
		files[filepath.Clean(configFilename)] = true
	}
	return files
}

func watchedDirs(files map[string]bool) map[string]bool {
	dirs := make(map[string]bool)
	for file := range files {
		dirs[filepath.Dir(file)] = true
	}
	return dirs
}

func history(cfg config.Config, count int) int {
	if len(cfg.DatabaseFilename()) == 0 {
		fmt.Println("ERROR: no database configured")
		return 1
	}
	db := database.NewDatabase(cfg.DatabaseFilename())
	defer db.Close()
	runs, err := db.Recent(count)
	if err != nil {
		fmt.Println("ERROR:", err)
		return 1
	}
	for _, run := range runs {
		fmt.Println(formatRun(run))
		for _, source := range run.Sources {
			fmt.Printf("    %s status=%d timestamp=%d %s\n", source.URI, source.Status, source.Timestamp, source.Error)
		}
	}
	return 0
}

func formatRun(run database.Run) string {
	line := fmt.Sprintf("%s %-7s %s status=%d records=%d added=%d skipped=%d failed=%d",
		run.Started.Local().Format("2006-01-02 15:04:05"), run.Action, run.Finished.Sub(run.Started).Round(time.Millisecond),
		run.Status, run.Records, run.Added, run.Skipped, run.Failed)
	if len(run.LastError) > 0 {
		line += " error=" + run.LastError
	}
	return line
}

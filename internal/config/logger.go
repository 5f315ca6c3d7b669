package config

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

func setupLogger(filename string, maxSize int, maxAge int, verbose bool) {
	var w io.Writer = os.Stderr
	if len(filename) > 0 {
		w = &lumberjack.Logger{
			Filename: filename,
			MaxSize:  maxSize,
			MaxAge:   maxAge,
			Compress: true}
	}
	log.SetOutput(w)
	log.SetReportTimestamp(true)
	log.SetTimeFormat("2006/01/02 15:04:05.000000")
	if len(filename) > 0 {
		log.SetFormatter(log.LogfmtFormatter)
	} else {
		log.SetFormatter(log.TextFormatter)
	}
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

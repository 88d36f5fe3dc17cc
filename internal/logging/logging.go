// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultLogDir = "logs"
	logFileName   = "reportanalyzer.log"
	maxLogSizeMB  = 50
	maxLogBackups = 5
	maxLogAgeDays = 14
)

// Options controls logger setup.
type Options struct {
	Debug  bool
	ToFile bool
	Dir    string
}

// Setup configures the global logger and gin mode. The returned closer
// flushes the rotating file writer when file logging is enabled.
func Setup(opts Options) io.Closer {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if opts.Debug {
		log.SetLevel(log.DebugLevel)
		gin.SetMode(gin.DebugMode)
	} else {
		log.SetLevel(log.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	}

	if !opts.ToFile {
		log.SetOutput(os.Stdout)
		return io.NopCloser(nil)
	}

	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		dir = defaultLogDir
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	gin.DefaultWriter = io.MultiWriter(os.Stdout, rotator)
	return rotator
}

// Command artcache derives cache keys for build inputs and resolves build
// outputs through a shared artifact cache directory.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/gophersatwork/artifactcache"
)

const defaultSubdir = "artcache"

// globalConfig holds the flags shared by every command.
type globalConfig struct {
	dir      string
	logLevel string
	jobs     int

	out    io.Writer
	errOut io.Writer
}

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if _, err := app.Parse(os.Args[1:]); err != nil {
		exitWithErr(err)
	}
}

func exitWithErr(err error) {
	fmt.Fprintf(os.Stderr, "artcache: %v\n", err)
	os.Exit(1)
}

// newApp builds the command line application writing results to out and
// logs to errOut.
func newApp(out, errOut io.Writer) *kingpin.Application {
	cfg := &globalConfig{out: out, errOut: errOut}

	app := kingpin.New("artcache", "Content-addressed cache for build artifacts.")
	app.UsageWriter(out)
	app.ErrorWriter(errOut)
	app.Terminate(nil)
	app.Flag("dir", "Cache directory. Defaults to the user cache directory.").Envar("ARTCACHE_DIR").StringVar(&cfg.dir)
	app.Flag("log.level", "Only log messages with the given severity or above.").Default("info").Envar("ARTCACHE_LOG_LEVEL").EnumVar(&cfg.logLevel, "debug", "info", "warn", "error")
	app.Flag("jobs", "Number of input files hashed in parallel.").Default(strconv.Itoa(runtime.NumCPU())).IntVar(&cfg.jobs)

	addKeyCommand(app, cfg)
	addResolveCommand(app, cfg)
	addStatsCommand(app, cfg)
	return app
}

// logger returns a logfmt logger on errOut filtered by --log.level.
func (cfg *globalConfig) logger() log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(cfg.errOut))
	var allow level.Option
	switch cfg.logLevel {
	case "debug":
		allow = level.AllowDebug()
	case "warn":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	default:
		allow = level.AllowInfo()
	}
	logger = level.NewFilter(logger, allow)
	return log.With(logger, "ts", log.DefaultTimestampUTC)
}

// cacheDir returns --dir, or the default directory under the user cache dir.
func (cfg *globalConfig) cacheDir() (string, error) {
	if cfg.dir != "" {
		return cfg.dir, nil
	}
	root, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("no --dir given and no user cache directory: %w", err)
	}
	return filepath.Join(root, defaultSubdir), nil
}

// openStore opens the DirStore at the configured directory.
func (cfg *globalConfig) openStore(logger log.Logger) (*artifactcache.DirStore, error) {
	dir, err := cfg.cacheDir()
	if err != nil {
		return nil, err
	}
	return artifactcache.NewDirStore(dir, artifactcache.WithLogger(logger))
}

// inputFiles joins a classpath-style list and explicit files, in that order.
func inputFiles(classpath string, files []string) []string {
	var inputs []string
	for _, element := range filepath.SplitList(classpath) {
		if element != "" {
			inputs = append(inputs, element)
		}
	}
	return append(inputs, files...)
}

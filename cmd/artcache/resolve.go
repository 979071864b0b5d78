package main

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log/level"

	"github.com/gophersatwork/artifactcache"
)

// resolveCommand produces an output through the cache, running a command
// on a miss.
type resolveCommand struct {
	cfg       *globalConfig
	prefix    string
	output    string
	classpath string
	inputs    []string
	key       string
	command   []string
}

func (cmd *resolveCommand) run(_ *kingpin.ParseContext) error {
	logger := cmd.cfg.logger()

	store, err := cmd.cfg.openStore(logger)
	if err != nil {
		return err
	}

	key := artifactcache.NewKey(cmd.key)
	if cmd.key == "" {
		if cmd.prefix == "" {
			return errors.New("either --prefix or --key is required")
		}
		deriver := artifactcache.NewDeriver(cmd.prefix,
			artifactcache.WithConcurrency(cmd.cfg.jobs),
			artifactcache.WithLogger(logger))
		key, err = deriver.Key(inputFiles(cmd.classpath, cmd.inputs))
		if err != nil {
			return err
		}
	}

	cache := artifactcache.New(store, artifactcache.WithLogger(logger))
	outcome, err := cache.Resolve(cmd.output, key, cmd.fallback)

	var storeErr *artifactcache.StoreError
	if errors.As(err, &storeErr) && storeErr.Op == artifactcache.OpCopyIn {
		// The output was built; only the insert failed.
		level.Warn(logger).Log("msg", "output not cached", "key", key, "err", err)
		err = nil
	}
	if err != nil {
		return err
	}

	level.Info(logger).Log("msg", "resolved", "output", cmd.output, "outcome", outcome, "key", key)
	fmt.Fprintln(cmd.cfg.out, outcome)
	return nil
}

// fallback runs the build command. Its output goes to the log stream so
// that stdout only carries the outcome.
func (cmd *resolveCommand) fallback() error {
	c := exec.Command(cmd.command[0], cmd.command[1:]...)
	c.Stdout = cmd.cfg.errOut
	c.Stderr = cmd.cfg.errOut
	if err := c.Run(); err != nil {
		return fmt.Errorf("%s: %w", cmd.command[0], err)
	}
	return nil
}

func addResolveCommand(app *kingpin.Application, cfg *globalConfig) {
	cmd := &resolveCommand{cfg: cfg}
	resolve := app.Command("resolve", "Copy OUTPUT from the cache, or run the command to build it and cache the result.").Action(cmd.run)
	resolve.Flag("prefix", "Key prefix naming the kind of artifact.").Envar("ARTCACHE_PREFIX").StringVar(&cmd.prefix)
	resolve.Flag("output", "File the command writes.").Required().StringVar(&cmd.output)
	resolve.Flag("classpath", "Input files separated by the OS path list separator.").StringVar(&cmd.classpath)
	resolve.Flag("input", "Input file; repeat in order.").StringsVar(&cmd.inputs)
	resolve.Flag("key", "Use this key instead of deriving one from the inputs.").StringVar(&cmd.key)
	resolve.Arg("command", "Command building OUTPUT, after --.").Required().StringsVar(&cmd.command)
}

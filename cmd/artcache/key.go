package main

import (
	"errors"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/gophersatwork/artifactcache"
)

// keyCommand prints the cache key for a set of input files.
type keyCommand struct {
	cfg       *globalConfig
	prefix    string
	classpath string
	single    bool
	files     []string
}

func (cmd *keyCommand) run(_ *kingpin.ParseContext) error {
	logger := cmd.cfg.logger()
	deriver := artifactcache.NewDeriver(cmd.prefix,
		artifactcache.WithConcurrency(cmd.cfg.jobs),
		artifactcache.WithLogger(logger))

	inputs := inputFiles(cmd.classpath, cmd.files)

	var (
		key artifactcache.Key
		err error
	)
	if cmd.single {
		if len(inputs) != 1 {
			return errors.New("--single needs exactly one input file")
		}
		key, err = deriver.FileKey(inputs[0])
	} else {
		key, err = deriver.Key(inputs)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.cfg.out, key)
	return nil
}

func addKeyCommand(app *kingpin.Application, cfg *globalConfig) {
	cmd := &keyCommand{cfg: cfg}
	key := app.Command("key", "Print the cache key for the input files, or \"uncacheable\".").Action(cmd.run)
	key.Flag("prefix", "Key prefix naming the kind of artifact.").Required().Envar("ARTCACHE_PREFIX").StringVar(&cmd.prefix)
	key.Flag("classpath", "Input files separated by the OS path list separator.").StringVar(&cmd.classpath)
	key.Flag("single", "Key a single file of any type.").BoolVar(&cmd.single)
	key.Arg("file", "Input files, in order.").StringsVar(&cmd.files)
}

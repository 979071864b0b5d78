package main

import (
	"fmt"
	"sort"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// statsCommand prints what the cache directory holds.
type statsCommand struct {
	cfg     *globalConfig
	entries bool
}

func (cmd *statsCommand) run(_ *kingpin.ParseContext) error {
	store, err := cmd.cfg.openStore(cmd.cfg.logger())
	if err != nil {
		return err
	}

	stats, err := store.Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	out := cmd.cfg.out
	bold := color.New(color.Bold)
	bold.Fprintln(out, "Cache:")
	fmt.Fprintf(out, "\tdir: %s, entries: %d, size: %v\n", store.Root(), stats.Entries, humanize.Bytes(uint64(stats.TotalSize)))

	if len(stats.Prefixes) > 0 {
		prefixes := make([]string, 0, len(stats.Prefixes))
		for prefix := range stats.Prefixes {
			prefixes = append(prefixes, prefix)
		}
		sort.Strings(prefixes)

		bold.Fprintln(out, "Prefixes:")
		for _, prefix := range prefixes {
			p := stats.Prefixes[prefix]
			fmt.Fprintf(out, "\t%s: entries: %d, size: %v\n", prefix, p.Entries, humanize.Bytes(uint64(p.TotalSize)))
		}
	}

	if !cmd.entries {
		return nil
	}

	entries, err := store.Entries()
	if err != nil {
		return fmt.Errorf("failed to list cache entries: %w", err)
	}
	bold.Fprintln(out, "Entries:")
	for _, e := range entries {
		fmt.Fprintf(out, "\t%s\t%v\t%s\n", e.Name, humanize.Bytes(uint64(e.Size)), humanize.Time(e.ModTime))
	}
	return nil
}

func addStatsCommand(app *kingpin.Application, cfg *globalConfig) {
	cmd := &statsCommand{cfg: cfg}
	stats := app.Command("stats", "Print statistics for the cache directory.").Action(cmd.run)
	stats.Flag("entries", "Also list every entry.").BoolVar(&cmd.entries)
}

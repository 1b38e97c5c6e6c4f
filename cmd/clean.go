package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/expo-cli/internal/pipeline"
)

var (
	cleanDryRun    bool
	cleanKeepCache bool
	cleanDir       string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete pipeline artifacts from the output directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cleanDir
		if dir == "" {
			dir = cfg.Output.Dir
		}
		return cleanOutputs(os.Stdout, dir, cleanDryRun, cleanKeepCache)
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "list files without deleting them")
	cleanCmd.Flags().BoolVar(&cleanKeepCache, "keep-cache", false, "keep the serper response cache")
	cleanCmd.Flags().StringVar(&cleanDir, "dir", "", "output directory to clean (default from config)")
	rootCmd.AddCommand(cleanCmd)
}

// cleanTarget is one file slated for removal.
type cleanTarget struct {
	path string
	size int64
}

// cleanTargets lists pipeline artifacts directly inside dir: CSVs, JSON
// files, and leftover temp files. Subdirectories are never touched. With
// keepCache the serper response cache survives so the next run still gets
// its cache hits.
func cleanTargets(dir string, keepCache bool) ([]cleanTarget, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var targets []cleanTarget
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".json", ".tmp":
		default:
			continue
		}
		if keepCache && e.Name() == pipeline.CacheJSON {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, eris.Wrapf(err, "clean: stat %s", e.Name())
		}
		targets = append(targets, cleanTarget{path: filepath.Join(dir, e.Name()), size: info.Size()})
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].path < targets[j].path })
	return targets, nil
}

// cleanOutputs removes (or with dryRun, just lists) the artifacts under dir.
func cleanOutputs(out io.Writer, dir string, dryRun, keepCache bool) error {
	targets, err := cleanTargets(dir, keepCache)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(out, "Output directory %s does not exist, nothing to clean.\n", dir)
			return nil
		}
		return eris.Wrapf(err, "clean: read %s", dir)
	}

	if len(targets) == 0 {
		fmt.Fprintln(out, "Nothing to clean.")
		return nil
	}

	var total int64
	for _, t := range targets {
		total += t.size
	}
	fmt.Fprintf(out, "Found %d file(s) to clean (%.2f MB):\n", len(targets), float64(total)/(1024*1024))
	for _, t := range targets {
		fmt.Fprintf(out, "  %s (%.1f KB)\n", t.path, float64(t.size)/1024)
	}

	if dryRun {
		fmt.Fprintln(out, "Dry run: nothing deleted.")
		return nil
	}

	var freed int64
	deleted := 0
	for _, t := range targets {
		if err := os.Remove(t.path); err != nil {
			return eris.Wrapf(err, "clean: remove %s", t.path)
		}
		deleted++
		freed += t.size
	}
	fmt.Fprintf(out, "Deleted %d file(s), freed %.2f MB.\n", deleted, float64(freed)/(1024*1024))
	return nil
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"voxelbuild.ai/internal/persistence/snapfile"
	"voxelbuild.ai/internal/sim/catalogs"
	"voxelbuild.ai/internal/sim/snapshot"
)

var compileOut string

var compileCmd = &cobra.Command{
	Use:   "compile DEFINITION",
	Short: "Turn a definition into a snapshot file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path, digest, err := compileDefinition(configDir, args[0], compileOut)
		if err != nil {
			log.Fatal().Err(err).Msg("Couldn't compile definition")
		}
		fmt.Fprintln(os.Stderr, color.Green.Sprintf("Wrote %s (%s)", path, digest))
	},
}

func init() {
	compileCmd.Flags().StringVar(&compileOut, "out", "./data/snapshots", "Output directory")
}

func compileDefinition(configDir, defPath, outDir string) (string, string, error) {
	cat, err := catalogs.Load(configDir)
	if err != nil {
		return "", "", err
	}
	d, err := snapshot.LoadDefinition(defPath)
	if err != nil {
		return "", "", err
	}
	snap, err := d.Build(cat, time.Now())
	if err != nil {
		return "", "", err
	}
	path := snapfile.SnapshotPath(outDir, snap.Meta().Header)
	digest, err := snapfile.WriteSnapshot(path, snap)
	if err != nil {
		return "", "", err
	}
	return path, digest, nil
}

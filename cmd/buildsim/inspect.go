package main

import (
	"fmt"
	"io"
	"os"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"voxelbuild.ai/internal/persistence/snapfile"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE...",
	Short: "Print the header of snapshot and world files",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		failed := false
		for _, path := range args {
			info, err := snapfile.ReadInfo(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("Couldn't read header")
				failed = true
				continue
			}
			printInfo(os.Stdout, path, info)
		}
		if failed {
			os.Exit(1)
		}
	},
}

func printInfo(w io.Writer, path string, info snapfile.Info) {
	fmt.Fprintln(w, color.Bold.Sprint(path))
	fmt.Fprintf(w, "  kind:     %s v%d\n", info.Kind, info.Version)
	fmt.Fprintf(w, "  digest:   %s\n", info.Digest)
	if h := info.Snapshot; h != nil {
		fmt.Fprintf(w, "  id:       %s\n", h.ID)
		fmt.Fprintf(w, "  name:     %s\n", h.Name)
		fmt.Fprintf(w, "  type:     %s\n", h.Type)
		fmt.Fprintf(w, "  owner:    %s\n", h.Owner)
		fmt.Fprintf(w, "  created:  %s\n", h.Created.Format("2006-01-02 15:04:05Z07:00"))
	}
	if h := info.World; h != nil {
		fmt.Fprintf(w, "  snapshot: %s\n", h.SnapshotID)
		fmt.Fprintf(w, "  tick:     %d\n", h.Tick)
		fmt.Fprintf(w, "  saved:    %s\n", h.Saved.Format("2006-01-02 15:04:05Z07:00"))
	}
}

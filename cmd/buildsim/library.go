package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"voxelbuild.ai/internal/persistence/library"
	"voxelbuild.ai/internal/sim/snapshot"
)

var (
	libraryDB string
	listOwner string
	listType  string
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage the snapshot library",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var owner *uuid.UUID
		if listOwner != "" {
			id, err := uuid.Parse(listOwner)
			if err != nil {
				log.Fatal().Err(err).Msg("Bad --owner")
			}
			owner = &id
		}
		typ := snapshot.Type(listType)
		if typ != "" && !typ.Valid() {
			log.Fatal().Str("type", listType).Msg("Bad --type")
		}
		withLibrary(func(lib *library.Library) {
			entries, err := lib.List(cmd.Context(), owner, typ)
			if err != nil {
				log.Fatal().Err(err).Msg("Couldn't list library")
			}
			printEntries(os.Stdout, entries)
		})
	},
}

var libraryAddCmd = &cobra.Command{
	Use:   "add SNAPSHOT_FILE...",
	Short: "Index snapshot files",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withLibrary(func(lib *library.Library) {
			for _, path := range args {
				e, err := lib.Import(cmd.Context(), path)
				if err != nil {
					log.Fatal().Err(err).Str("path", path).Msg("Couldn't add snapshot")
				}
				fmt.Fprintln(os.Stderr, color.Green.Sprintf("Added %s %s", e.ID, e.Name))
			}
		})
	},
}

var libraryRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Drop a snapshot and its build history from the library",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("Bad snapshot id")
		}
		withLibrary(func(lib *library.Library) {
			if err := lib.Remove(cmd.Context(), id); err != nil {
				log.Fatal().Err(err).Msg("Couldn't remove snapshot")
			}
		})
	},
}

var libraryBuildsCmd = &cobra.Command{
	Use:   "builds ID",
	Short: "List recorded builds of a snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("Bad snapshot id")
		}
		withLibrary(func(lib *library.Library) {
			builds, err := lib.Builds(cmd.Context(), id)
			if err != nil {
				log.Fatal().Err(err).Msg("Couldn't list builds")
			}
			printBuilds(os.Stdout, builds)
		})
	},
}

func init() {
	libraryCmd.PersistentFlags().StringVar(&libraryDB, "db", "./data/library.db", "Library database")
	libraryListCmd.Flags().StringVar(&listOwner, "owner", "", "Only snapshots by this owner UUID")
	libraryListCmd.Flags().StringVar(&listType, "type", "", "Only TEMPLATE or BLUEPRINT snapshots")
	libraryCmd.AddCommand(libraryListCmd, libraryAddCmd, libraryRemoveCmd, libraryBuildsCmd)
}

func withLibrary(fn func(lib *library.Library)) {
	lib, err := library.Open(libraryDB)
	if err != nil {
		log.Fatal().Err(err).Str("db", libraryDB).Msg("Couldn't open library")
	}
	defer lib.Close()
	fn(lib)
}

func printEntries(w io.Writer, entries []library.Entry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tCREATED\tPATH")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Name, e.Type, e.Created.Format("2006-01-02 15:04"), e.Path)
	}
	_ = tw.Flush()
}

func printBuilds(w io.Writer, builds []library.Build) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BUILD\tTICKS\tPLACED\tCLEARED\tRESULT\tRECORDED")
	for _, b := range builds {
		result := "done"
		if b.Cancelled {
			result = "cancelled"
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%s\t%s\n", b.ID, b.Ticks, b.Placed, b.Cleared, result, b.RecordedAt.Format("2006-01-02 15:04:05"))
	}
	_ = tw.Flush()
}

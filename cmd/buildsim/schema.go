package main

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"voxelbuild.ai/internal/sim/snapshot"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of structure definitions",
	Run: func(cmd *cobra.Command, args []string) {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snapshot.DefinitionSchema()); err != nil {
			log.Fatal().Err(err).Msg("Couldn't encode schema")
		}
	},
}

// export.go implements "sketchbook export json|snapshot" for the saved history.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/2389/sketchbook/internal/conversation"
	"github.com/2389/sketchbook/internal/export"
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export your conversation as JSON or a PDF snapshot",
}

var exportJSONCmd = &cobra.Command{
	Use:   "json",
	Short: "Write the conversation as a JSON array of turns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, func(ctx context.Context, e *export.Exporter) (*export.Artifact, error) {
			return e.ExportJSON(ctx)
		})
	},
}

var exportSnapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Aliases: []string{"pdf"},
	Short:   "Write the conversation as a single-page PDF",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, func(ctx context.Context, e *export.Exporter) (*export.Artifact, error) {
			return e.ExportSnapshot(ctx)
		})
	},
}

func init() {
	exportCmd.PersistentFlags().StringVar(&exportDir, "dir", "", "Output directory (default from config)")
	exportCmd.AddCommand(exportJSONCmd)
	exportCmd.AddCommand(exportSnapshotCmd)
}

// runExport loads the account history into a store and exports it.
func runExport(cmd *cobra.Command, do func(context.Context, *export.Exporter) (*export.Artifact, error)) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}

	turns, err := a.client.FetchHistory(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetching history: %w", err)
	}
	history := conversation.NewStore()
	if err := history.Initialize(turns); err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	dir := exportDir
	if dir == "" {
		dir = a.cfg.Export.Dir
	}

	v := newView(cmd.OutOrStdout())
	art, err := do(cmd.Context(), a.newExporter(history, export.NewDirSink(dir), v))
	switch {
	case errors.Is(err, export.ErrSnapshotFailed):
		return errors.New("snapshot export failed")
	case err != nil:
		return err
	case art == nil:
		v.info("Nothing to export yet.")
	default:
		v.ok("Exported %s", art.Location)
	}
	return nil
}

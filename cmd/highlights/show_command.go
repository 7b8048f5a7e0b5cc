package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clipmark/highlights/internal/models"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <video-id>",
		Short: "List a processed video's highlights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid video id %q", args[0])
			}

			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}

			video, err := store.Store.GetVideo(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Video %d: %s\n", video.ID, video.Source)

			if video.DurationSec != nil {
				fmt.Fprintf(out, "Duration: %ds\n", *video.DurationSec)
			}

			if len(video.Highlights) == 0 {
				fmt.Fprintln(out, "No highlights")
				return nil
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Window", "Description", "Summary", "Confidence", "Objects"},
				highlightRows(video.Highlights),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))

			return nil
		},
	}
}

func highlightRows(highlights []models.Highlight) [][]string {
	rows := make([][]string, len(highlights))
	for i, h := range highlights {
		objects := strings.Join(models.SplitObjectNames(h.Objects), ", ")
		if objects == "" {
			objects = "-"
		}

		rows[i] = []string{
			formatWindow(h.TsStartSec, h.TsEndSec),
			h.Description,
			formatOptional(h.Summary),
			formatConfidence(h.Confidence),
			objects,
		}
	}

	return rows
}

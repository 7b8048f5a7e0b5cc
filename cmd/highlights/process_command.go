package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/clipmark/highlights/internal/service"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process videos into highlights",
		Long: "Process one video (path or URL) or every source listed in a .txt file, one per line.\n" +
			"Sources are processed one after another; a failed source does not stop the rest.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()

			sources, err := readSources(input)
			if err != nil {
				return err
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}

			gateway, err := ctx.gateway(cmd.Context(), true)
			if err != nil {
				return fmt.Errorf("select model provider: %w", err)
			}

			orchestrator := service.NewOrchestrator(cfg.Pipeline, gateway, store.Store, nil, ctx.logger)

			rows := make([][]string, 0, len(sources))

			var failed int

			for _, source := range sources {
				res, err := orchestrator.Process(cmd.Context(), source)
				if err != nil {
					if cmd.Context().Err() != nil {
						return err
					}

					failed++

					ctx.logger.Error("processing failed", "source", source, "error", err)
					rows = append(rows, []string{source, "-", "-", "-", "failed: " + err.Error()})

					continue
				}

				rows = append(rows, []string{
					source,
					strconv.FormatInt(res.Video.ID, 10),
					strconv.Itoa(res.Segments),
					strconv.Itoa(len(res.Highlights)),
					"ok",
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Source", "Video", "Segments", "Highlights", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))

			if failed > 0 {
				return fmt.Errorf("%d of %d sources failed", failed, len(sources))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Video path, URL, or .txt file listing sources")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}

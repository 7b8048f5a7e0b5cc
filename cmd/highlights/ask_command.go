package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clipmark/highlights/internal/retrieval"
	"github.com/clipmark/highlights/internal/service"
)

func newAskCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from stored highlights",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}

			gateway, err := ctx.gateway(cmd.Context(), false)
			if err != nil {
				return fmt.Errorf("select model provider: %w", err)
			}

			var embedder retrieval.Embedder
			if gateway != nil {
				embedder = gateway
			}

			engine, err := service.NewEngine(cfg.Search, store.Store, embedder, nil, ctx.logger)
			if err != nil {
				return err
			}

			ans, err := engine.Answer(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Text)

			if len(ans.Matches) == 0 {
				return nil
			}

			rows := make([][]string, len(ans.Matches))
			for i, m := range ans.Matches {
				rows[i] = []string{
					strconv.FormatInt(m.VideoID, 10),
					formatWindow(m.TsStartSec, m.TsEndSec),
					m.Text(),
					strconv.FormatFloat(m.Score, 'f', 3, 64),
				}
			}

			fmt.Fprintln(out)
			fmt.Fprintf(out, "Matches (%s search):\n", ans.Mode)
			fmt.Fprintln(out, renderTable(
				[]string{"Video", "Window", "Highlight", "Score"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
			))

			return nil
		},
	}
}

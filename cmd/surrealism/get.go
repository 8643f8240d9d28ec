package main

import (
	"context"

	"github.com/Chooks22/surrealism"
	"github.com/spf13/cobra"
)

func newGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> [id]",
		Short: "Print one record or every record of a table",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, db *surrealism.DB) error {
				if len(args) == 1 {
					all, err := surrealism.GetAll[map[string]any](ctx, db, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), all)
				}

				rec, err := surrealism.Get[map[string]any](ctx, db, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
}

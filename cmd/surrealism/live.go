package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Chooks22/surrealism"
	"github.com/Chooks22/surrealism/pkg/connection"
	"github.com/Chooks22/surrealism/pkg/live"
	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var actionColors = map[connection.Action]func(a ...any) string{
	connection.CreateAction: color.New(color.FgGreen).SprintFunc(),
	connection.UpdateAction: color.New(color.FgYellow).SprintFunc(),
	connection.DeleteAction: color.New(color.FgRed).SprintFunc(),
}

func printNotification(w io.Writer, n live.Notification[any]) error {
	paint, ok := actionColors[n.Action]
	if !ok {
		paint = fmt.Sprint
	}

	data, err := json.Marshal(n.Result)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s %s\n", paint(fmt.Sprintf("%-6s", n.Action)), data)
	return err
}

func newLiveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "live <select> [values...]",
		Short: "Stream changes of a live query until interrupted",
		Long: `Prefix the query with LIVE and print each notification as it arrives.
Placeholders work like in sql. Interrupting kills the live query.

  surrealism live "SELECT * FROM person WHERE age > ?" 18`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := template(args[0], args[1:])
			if err != nil {
				return err
			}

			return opts.run(cmd, func(ctx context.Context, db *surrealism.DB) error {
				lq, err := surrealism.Live[any](db, q)
				if err != nil {
					return err
				}

				it, err := lq.Iterator(ctx)
				if err != nil {
					return err
				}
				opts.log.Info("live query started", "id", it.ID())

				for n, err := range it.All(ctx) {
					if err != nil {
						if errors.Is(err, context.Canceled) {
							return nil
						}
						return err
					}
					if err := printNotification(cmd.OutOrStdout(), n); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

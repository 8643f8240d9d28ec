package main

import (
	"context"
	"strings"

	"github.com/Chooks22/surrealism"
	"github.com/Chooks22/surrealism/pkg/surrealql"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// template splits query on "?" and binds one value per placeholder. Values
// that parse as JSON keep their type, anything else is a string.
func template(query string, values []string) (surrealql.Template, error) {
	args := make([]any, len(values))
	for i, v := range values {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			decoded = v
		}
		args[i] = decoded
	}
	return surrealql.Tag(strings.Split(query, "?"), args...)
}

func newSQLCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sql <query> [values...]",
		Short: "Run a query",
		Long: `Run a query and print every statement result as JSON.

Each "?" in the query is replaced by the next value, bound as a variable:

  surrealism sql "SELECT * FROM person WHERE age > ? AND name != ?" 18 bob`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := template(args[0], args[1:])
			if err != nil {
				return err
			}

			return opts.run(cmd, func(ctx context.Context, db *surrealism.DB) error {
				res, err := surrealism.SQL[any](ctx, db, q)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

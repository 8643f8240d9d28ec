package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Chooks22/surrealism"
	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("server is not healthy")

func newHealthCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, db *surrealism.DB) error {
				ok, err := db.Health(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return errUnhealthy
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return err
			})
		},
	}
}

func newVersionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, db *surrealism.DB) error {
				v, err := db.Version(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), v)
				return err
			})
		},
	}
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a dump of the selected database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, db *surrealism.DB) error {
				r, err := db.Export(ctx)
				if err != nil {
					return err
				}
				defer r.Close()

				w := cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}

				_, err = io.Copy(w, r)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "-", "file to write, - for stdout")
	return cmd
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Load a dump into the selected database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			return opts.run(cmd, func(ctx context.Context, db *surrealism.DB) error {
				return db.Import(ctx, r)
			})
		},
	}
}

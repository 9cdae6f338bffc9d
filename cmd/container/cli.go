package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-container/framework/app"
	"github.com/km-arc/go-container/framework/container"
)

type cli struct {
	rootCmd *cobra.Command

	envFiles []string
	opts     []app.Option
}

func newCLI(opts ...app.Option) *cli {
	c := &cli{opts: opts}
	c.rootCmd = &cobra.Command{
		Use:           "container",
		Short:         "container runs and inspects a dependency-injection application",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.rootCmd.PersistentFlags().StringSliceVar(&c.envFiles, "env", nil, ".env files to load (default .env)")

	c.rootCmd.AddCommand(c.serveCmd(), c.inspectCmd())
	return c
}

func (c *cli) Exec() error {
	return c.rootCmd.Execute()
}

func (c *cli) newApp() (*app.Application, error) {
	opts := append([]app.Option{app.WithEnvFiles(c.envFiles...)}, c.opts...)
	return app.New(opts...)
}

// ── serve ─────────────────────────────────────────────────────────────────────

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Boot the application and serve the container over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
}

// ── inspect ───────────────────────────────────────────────────────────────────

type inspectCmd struct {
	asJSON bool
	noBoot bool
}

func (c *cli) inspectCmd() *cobra.Command {
	ic := &inspectCmd{}
	r := &cobra.Command{
		Use:   "inspect [ids...]",
		Short: "Resolve identifiers and print what they produce (all known identifiers by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			return ic.run(cmd, a, args)
		},
	}
	r.Flags().BoolVar(&ic.asJSON, "json", false, "print results as JSON")
	r.Flags().BoolVar(&ic.noBoot, "no-boot", false, "skip the provider boot pass")
	return r
}

func (ic *inspectCmd) run(cmd *cobra.Command, a *app.Application, ids []string) error {
	if !ic.noBoot {
		if err := a.Boot(); err != nil {
			return err
		}
	}
	if len(ids) == 0 {
		ids = a.Identifiers()
	}

	results := make([]container.Resolution, len(ids))
	for i, id := range ids {
		results[i] = container.Inspect(a, id)
	}

	out := cmd.OutOrStdout()
	if ic.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tHAS\tRESULT")
	for _, r := range results {
		result := r.Type
		if r.Err() != nil {
			result = "error: " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\n", r.ID, r.Has, result)
	}
	return tw.Flush()
}

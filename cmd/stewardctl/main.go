// Package main provides the stewardctl binary: an operator CLI for the
// election data integrity service. Every command talks to the running
// service over its HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr  string
		token string
	)
	cmd := &cobra.Command{
		Use:           "stewardctl",
		Short:         "Operator CLI for the election data integrity service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", envOr("STEWARD_URL", "http://localhost:8080"), "base URL of the steward service")
	cmd.PersistentFlags().StringVar(&token, "token", os.Getenv("STEWARD_TOKEN"), "bearer token for admin endpoints")

	client := func() *apiClient { return newAPIClient(addr, token) }

	cmd.AddCommand(
		newRunCmd(client),
		newRunsCmd(client),
		newPoliciesCmd(client),
		newCoverageCmd(client),
		newSummaryCmd(client),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("stewardctl version %s\n", version)
			},
		},
	)
	return cmd
}

func newRunCmd(client func() *apiClient) *cobra.Command {
	var (
		dryRun   bool
		policies []string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an audit run and wait for its result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().startRun(cmd.OutOrStdout(), policies, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report findings without applying remediations")
	cmd.Flags().StringSliceVar(&policies, "policy", nil, "restrict the run to the named policies (repeatable)")
	return cmd
}

func newRunsCmd(client func() *apiClient) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent audit runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().listRuns(cmd.OutOrStdout(), limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}

func newPoliciesCmd(client func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policies",
		Short: "Inspect and toggle integrity policies",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the policy catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().listPolicies(cmd.OutOrStdout())
		},
	})

	var enabled bool
	toggle := &cobra.Command{
		Use:   "toggle <policy-id>",
		Short: "Enable or disable a policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().togglePolicy(cmd.OutOrStdout(), args[0], "toggle", enabled)
		},
	}
	toggle.Flags().BoolVar(&enabled, "enabled", true, "desired detection state")
	cmd.AddCommand(toggle)

	var fixEnabled bool
	autofix := &cobra.Command{
		Use:   "autofix <policy-id>",
		Short: "Enable or disable a policy's remediation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().togglePolicy(cmd.OutOrStdout(), args[0], "autofix", fixEnabled)
		},
	}
	autofix.Flags().BoolVar(&fixEnabled, "enabled", true, "desired auto-fix state")
	cmd.AddCommand(autofix)

	return cmd
}

func newCoverageCmd(client func() *apiClient) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "List upcoming elections with no linked candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().coverage(cmd.OutOrStdout(), from, to)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "window start (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&to, "to", "", "window end (YYYY-MM-DD, default start plus configured window)")
	return cmd
}

func newSummaryCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show the corpus-wide authenticity summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().summary(cmd.OutOrStdout())
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package main

import (
	"github.com/Adda-Baaj/phantombuster-relay/pkg/relayclient"
	"github.com/spf13/cobra"
)

func newAgentsCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect and launch agents",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCall(cmd, s, func(c *relayclient.Client) (any, error) {
				return c.Agents(cmd.Context())
			})
		},
	}

	get := &cobra.Command{
		Use:   "get <agent-id>",
		Short: "Show agent status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, s, func(c *relayclient.Client) (any, error) {
				return c.AgentStatus(cmd.Context(), args[0])
			})
		},
	}

	var mode string
	output := &cobra.Command{
		Use:   "output <agent-id>",
		Short: "Show agent output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, s, func(c *relayclient.Client) (any, error) {
				return c.AgentOutput(cmd.Context(), args[0], mode)
			})
		},
	}
	output.Flags().StringVar(&mode, "mode", "most-recent", "Output mode: most-recent or all")

	var pairs []string
	var rawJSON string
	launch := &cobra.Command{
		Use:   "launch <agent-id>",
		Short: "Launch an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			argument, err := parseArgument(pairs, rawJSON)
			if err != nil {
				return err
			}
			return runCall(cmd, s, func(c *relayclient.Client) (any, error) {
				return c.LaunchAgent(cmd.Context(), args[0], argument)
			})
		},
	}
	launch.Flags().StringArrayVar(&pairs, "arg", nil, "Launch argument as key=value (repeatable)")
	launch.Flags().StringVar(&rawJSON, "arg-json", "", "Launch argument as a JSON object")

	results := &cobra.Command{
		Use:   "results <agent-id>",
		Short: "Show the agent result object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, s, func(c *relayclient.Client) (any, error) {
				return c.AgentResults(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(list, get, output, launch, results)
	return cmd
}

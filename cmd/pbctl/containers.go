package main

import (
	"github.com/Adda-Baaj/phantombuster-relay/pkg/relayclient"
	"github.com/spf13/cobra"
)

func newContainersCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "containers",
		Short: "Inspect agent runs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCall(cmd, s, func(c *relayclient.Client) (any, error) {
				return c.Containers(cmd.Context())
			})
		},
	}

	get := &cobra.Command{
		Use:   "get <container-id>",
		Short: "Show container data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, s, func(c *relayclient.Client) (any, error) {
				return c.ContainerData(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

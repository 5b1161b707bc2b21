// Package deployments implements deployment inspection commands.
package deployments

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/coxswain-cd/coxswain/app"
	"github.com/coxswain-cd/coxswain/cmd/output"
	"github.com/coxswain-cd/coxswain/services"
)

func NewCmdDeployments() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deployments",
		Short: "Inspect deployment records",
	}
	cmd.AddCommand(newCmdList())
	cmd.AddCommand(newCmdShow())
	return cmd
}

func newCmdList() *cobra.Command {
	var cloudID string
	var sourceID string
	var size int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deployment records",
		Long: `Display deployment records, most recent first.

Shows deployment information in a table format including the target cloud,
the deployed source, the topology and the current status.`,
		Run: func(cmd *cobra.Command, args []string) {
			deployments, err := app.GetEngine().Deployments(services.DeploymentFilter{
				CloudID:  cloudID,
				SourceID: sourceID,
			}, 0, size)
			if err != nil {
				_ = output.FprintError(cmd, "Error listing deployments: %s", err)
				return
			}

			out, err := output.PrintDeploymentList(deployments)
			if err != nil {
				_ = output.FprintError(cmd, "Error printing deployment list: %s", err)
				return
			}
			_ = output.FprintPlain(cmd, "%s", out)
		},
	}

	cmd.Flags().StringVar(&cloudID, "cloud", "", "Only show deployments on this cloud")
	cmd.Flags().StringVar(&sourceID, "source", "", "Only show deployments of this source")
	cmd.Flags().IntVar(&size, "size", 50, "Maximum number of deployments to show")
	return cmd
}

func newCmdShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show <deployment-id>",
		Short: "Show details of a deployment record",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := uuid.Parse(args[0])
			if err != nil {
				_ = output.FprintError(cmd, "Invalid deployment ID: %s", args[0])
				return
			}

			deployment, err := app.GetRecords().GetMandatory(id)
			if err != nil {
				_ = output.FprintError(cmd, "Error fetching deployment: %s", err)
				return
			}

			out, err := output.PrintDeploymentDetails(deployment)
			if err != nil {
				_ = output.FprintError(cmd, "Error printing deployment details: %s", err)
				return
			}
			_ = output.FprintPlain(cmd, "%s", out)
		},
	}
}

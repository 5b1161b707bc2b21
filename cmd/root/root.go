// Package root implements the command line interface for Coxswain.
package root

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/coxswain-cd/coxswain/app"
	"github.com/coxswain-cd/coxswain/cmd/deployments"
	"github.com/coxswain-cd/coxswain/cmd/output"
	"github.com/coxswain-cd/coxswain/cmd/server"
	"github.com/coxswain-cd/coxswain/cmd/version"
	"github.com/coxswain-cd/coxswain/logging"
	"github.com/coxswain-cd/coxswain/services"
)

func Execute() {
	if err := NewCmdRoot(services.GetDefaultDataDir()).Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCmdRoot(defaultDataDir string) *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "coxswain",
		Short: "Cloud-application orchestration console",
		Long: `Coxswain deploys application topologies onto pluggable cloud providers
and tracks the resulting runtime state through asynchronous provider events.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config, err := services.NewConfig(dataDir)
			if err != nil {
				log.Fatalf("Failed to initialize configuration: %s", err)
			}

			// CLI flags override config
			colorDisabled := !config.ColorEnabled
			if output.NoColor.IsSet() {
				colorDisabled = true
			}
			output.InitColors(colorDisabled)

			logLevel := config.LogLevel
			if logging.LogLevel.IsSet() {
				logLevel = logging.LogLevel.String()
			}
			logging.InitLogging(logLevel)

			if err := app.Initialize(config); err != nil {
				log.Fatalf("Failed to initialize application: %s", err)
			}
		},
	}

	cmd.PersistentFlags().
		StringVarP(&dataDir, "data-dir", "d", defaultDataDir, "Data directory for Coxswain configuration and state")
	cmd.PersistentFlags().VarP(logging.LogLevel, "log-level", "l", "Set log verbosity level")
	cmd.PersistentFlags().VarP(output.NoColor, "no-color", "c", "Disable colored terminal output")

	cmd.AddCommand(server.NewCmdServer())
	cmd.AddCommand(deployments.NewCmdDeployments())
	cmd.AddCommand(version.NewCmdVersion())

	return cmd
}

// Package output provides functions to print messages with optional color formatting
package output

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/coxswain-cd/coxswain/domain"
)

const (
	Plain   = color.FgWhite
	Success = color.FgGreen
	Warning = color.FgYellow
	Error   = color.FgRed
)

var maybeColorize func(kind color.Attribute, tmpl string, a ...any) string

// InitColors sets up color functions based on environment
func InitColors(isColorDisabled bool) {
	if color.NoColor || isColorDisabled {
		maybeColorize = func(kind color.Attribute, tmpl string, a ...any) string {
			return fmt.Sprintf(tmpl, a...)
		}
	} else {
		maybeColorize = func(kind color.Attribute, tmpl string, a ...any) string {
			return color.New(kind).SprintfFunc()(tmpl, a...)
		}
	}
}

// PrintMessage formats a message with color (if enabled) and returns it
func PrintMessage(kind color.Attribute, tmpl string, a ...any) string {
	if maybeColorize == nil || kind == Plain {
		return fmt.Sprintf(tmpl+"\n", a...)
	}
	return fmt.Sprintln(maybeColorize(kind, tmpl, a...))
}

// FprintPlain prints a plain message to the command's stdout
func FprintPlain(cmd *cobra.Command, tmpl string, a ...any) error {
	_, err := fmt.Fprint(cmd.OutOrStdout(), PrintMessage(Plain, tmpl, a...))
	return err
}

// FprintError prints an error message to the command's stderr
func FprintError(cmd *cobra.Command, tmpl string, a ...any) error {
	_, err := fmt.Fprint(cmd.ErrOrStderr(), PrintMessage(Error, tmpl, a...))
	return err
}

func PrintTable(header []string, data [][]string) (string, error) {
	buf := strings.Builder{}

	table := tablewriter.NewTable(
		&buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines: tw.Lines{
					ShowHeaderLine: tw.Off,
				},
				Separators: tw.Separators{
					BetweenColumns: tw.Off,
				},
			},
		})),
	)

	if len(header) > 0 {
		table.Header(header)
	}

	if err := table.Bulk(data); err != nil {
		return "", fmt.Errorf("bulk adding data to table: %w", err)
	}

	if err := table.Render(); err != nil {
		return "", fmt.Errorf("rendering table: %w", err)
	}

	return buf.String(), nil
}

// StatusColor maps a deployment status to the color it is rendered in
func StatusColor(status domain.DeploymentStatus) color.Attribute {
	switch status {
	case domain.DeploymentStatusDeployed:
		return Success
	case domain.DeploymentStatusFailure:
		return Error
	case domain.DeploymentStatusWarning:
		return Warning
	default:
		return Plain
	}
}

func PrintDeploymentList(deployments []*domain.Deployment) (string, error) {
	if len(deployments) == 0 {
		return PrintMessage(Plain, "No deployments found."), nil
	}

	header := []string{
		"ID",
		"Cloud",
		"Source",
		"Topology",
		"Status",
		"Started At",
		"Ended At",
	}
	var data [][]string
	for _, deployment := range deployments {
		endDate := ""
		if deployment.EndDate != nil {
			endDate = deployment.EndDate.Format("2006-01-02 15:04:05")
		}
		data = append(data, []string{
			deployment.ID.String(),
			deployment.CloudID,
			deployment.SourceName,
			deployment.TopologyID,
			deployment.Status.String(),
			deployment.StartDate.Format("2006-01-02 15:04:05"),
			endDate,
		})
	}

	return PrintTable(header, data)
}

func PrintDeploymentDetails(deployment *domain.Deployment) (string, error) {
	endDate := ""
	if deployment.EndDate != nil {
		endDate = deployment.EndDate.Format("2006-01-02 15:04:05")
	}

	data := [][]string{
		{"ID", deployment.ID.String()},
		{"Cloud", deployment.CloudID},
		{"Source ID", deployment.SourceID},
		{"Source Name", deployment.SourceName},
		{"Source Type", deployment.SourceType.String()},
		{"Topology", deployment.TopologyID},
		{"Environment", deployment.Setup.EnvironmentID},
		{"Version", deployment.Setup.VersionID},
		{"Status", deployment.Status.String()},
		{"Started At", deployment.StartDate.Format("2006-01-02 15:04:05")},
		{"Ended At", endDate},
	}

	table, err := PrintTable([]string{}, data)
	if err != nil {
		return "", fmt.Errorf("printing deployment details table: %w", err)
	}
	return table, nil
}

// NoColor is a flag for disabling colored output
var NoColor = &noColorFlag{}

type noColorFlag struct {
	value bool
	set   bool
}

func (f *noColorFlag) Set(value string) error {
	switch value {
	case "true", "":
		f.value = true
	case "false":
		f.value = false
	default:
		return fmt.Errorf("invalid value '%s'. Allowed values: true, false", value)
	}
	f.set = true
	return nil
}

func (f *noColorFlag) String() string {
	return fmt.Sprintf("%t", f.value)
}

func (f *noColorFlag) Type() string {
	return "bool"
}

// IsSet returns true if the flag was explicitly set via command line
func (f *noColorFlag) IsSet() bool {
	return f.set
}

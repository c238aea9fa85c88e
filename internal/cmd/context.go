package cmd

import (
	"github.com/spf13/cobra"
)

// CommandContext holds the persistent flags of one invocation.
// Commands read it instead of package-level variables so that several
// root commands can coexist in one test binary.
type CommandContext struct {
	// Output control
	Verbose bool
	Format  string
	NoColor bool

	// Configuration
	APIURL   string
	Home     string
	LogLevel string
}

// NewCommandContext extracts command context from cobra.Command flags.
// Unchanged flags come back empty so that configuration and environment
// values are not overridden by flag defaults.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, err
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return nil, err
	}

	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return nil, err
	}

	apiURL, err := cmd.Flags().GetString("api-url")
	if err != nil {
		return nil, err
	}

	home, err := cmd.Flags().GetString("home")
	if err != nil {
		return nil, err
	}

	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Verbose:  verbose,
		Format:   format,
		NoColor:  noColor,
		APIURL:   apiURL,
		Home:     home,
		LogLevel: logLevel,
	}, nil
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/okr/internal/version"
	"github.com/felixgeelhaar/okr/internal/ux"
)

func (c *cli) newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetInfo()
			return c.render(cmd, info, ux.Message{Text: info.String()})
		},
	}
	return noBoot(cmd)
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/okr/internal/ux"
)

func (c *cli) newCompanyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Show the organization's branding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := c.app.Company.Fetch(cmd.Context())
			if r.Err != nil {
				c.notice(cmd, "Company details unavailable: %v", r.Err)
			}
			co := c.app.Company.Company()
			d := ux.NewDetail(c.app.Company.Title()).
				Add("Name", co.Name).
				Add("Logo", co.LogoURL)
			return c.render(cmd, co, d)
		},
	}
	return withRoute(cmd, "/settings/company")
}

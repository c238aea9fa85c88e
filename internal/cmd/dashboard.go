package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/okr/internal/domain"
	"github.com/felixgeelhaar/okr/internal/router"
	"github.com/felixgeelhaar/okr/internal/ux"
)

// dashboardLimit caps the objectives shown on the dashboard.
const dashboardLimit = 10

type dashboard struct {
	Company       string             `json:"company" yaml:"company"`
	User          userView           `json:"user" yaml:"user"`
	Stats         domain.Stats       `json:"stats,omitempty" yaml:"stats,omitempty"`
	Objectives    []domain.Objective `json:"objectives" yaml:"objectives"`
	UnreadCount   int                `json:"unread_notifications" yaml:"unread_notifications"`
	Warnings      []string           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func (d dashboard) RenderText(s ux.Styles) string {
	head := ux.NewDetail(d.Company).
		Add("Signed in as", d.User.Name).
		Addf("Unread notifications", "%d", d.UnreadCount)

	sections := ux.Sections{head}
	if len(d.Stats) > 0 {
		sections = append(sections, statsDetail("Overview", d.Stats))
	}
	list := d.Objectives
	if len(list) > dashboardLimit {
		list = list[:dashboardLimit]
	}
	sections = append(sections, objectiveTable("Recent objectives", list))
	for _, w := range d.Warnings {
		sections = append(sections, ux.Warningf("%s", w))
	}
	return sections.RenderText(s)
}

func (c *cli) newDashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show an overview of objectives and notifications",
		Args:  cobra.NoArgs,
		RunE:  c.runDashboard,
	}
	return withRoute(cmd, router.LandingPath)
}

// runDashboard loads the dashboard sections concurrently. Section failures are
// reported as warnings; only a failed objectives fetch fails the command.
func (c *cli) runDashboard(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := c.app

	var (
		stats    domain.Stats
		statsErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Objectives.ClearFilters()
		_, err := a.Objectives.Fetch(gctx)
		return err
	})
	g.Go(func() error {
		stats, statsErr = a.Objectives.FetchStats(gctx)
		return nil
	})
	g.Go(func() error {
		a.Notifications.FetchUnreadCount(gctx)
		return nil
	})
	g.Go(func() error {
		a.Company.Fetch(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	user, _ := a.Session.User()
	d := dashboard{
		Company:     a.Company.Title(),
		User:        newUserView(user),
		Stats:       stats,
		Objectives:  a.Objectives.Objectives(),
		UnreadCount: a.Notifications.UnreadCount(),
	}
	if statsErr != nil {
		d.Warnings = append(d.Warnings, fmt.Sprintf("Statistics unavailable: %v", statsErr))
	}
	return c.render(cmd, d, d)
}

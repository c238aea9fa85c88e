package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/okr/internal/errors"
	"github.com/felixgeelhaar/okr/internal/health"
	"github.com/felixgeelhaar/okr/internal/ux"
)

type doctorReport struct {
	Status health.Status   `json:"status" yaml:"status"`
	Checks []health.Report `json:"checks" yaml:"checks"`
}

func (r doctorReport) RenderText(s ux.Styles) string {
	t := ux.NewTable("Health: "+r.Status.String(), "Check", "Status", "Message", "Latency")
	for _, c := range r.Checks {
		t.AddRow(c.Name, statusMark(c.Status), c.Message, c.Latency.Round(time.Millisecond).String())
	}
	return t.RenderText(s)
}

func statusMark(st health.Status) string {
	switch st {
	case health.StatusHealthy:
		return "✓ " + st.String()
	case health.StatusDegraded:
		return "! " + st.String()
	default:
		return "✗ " + st.String()
	}
}

func (c *cli) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the API, local storage and the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = c.app.Session.Wait(cmd.Context())

			reports := c.app.Doctor().Check(cmd.Context())
			r := doctorReport{Status: health.OverallStatus(reports), Checks: reports}
			if err := c.render(cmd, r, r); err != nil {
				return err
			}
			if r.Status == health.StatusUnhealthy {
				return errors.New(errors.ErrCodeNetworkDown, fmt.Sprintf("%d check(s) failed", countUnhealthy(reports))).
					WithSuggestion("Run 'okr config path' and 'okr config view' to review settings")
			}
			return nil
		},
	}
}

func countUnhealthy(reports []health.Report) int {
	n := 0
	for _, r := range reports {
		if r.Status == health.StatusUnhealthy {
			n++
		}
	}
	return n
}

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/okr/internal/domain"
	"github.com/felixgeelhaar/okr/internal/notifications"
	"github.com/felixgeelhaar/okr/internal/server"
	"github.com/felixgeelhaar/okr/internal/ux"
)

func (c *cli) newNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif"},
		Short:   "Read and manage notifications",
	}
	cmd.AddCommand(
		c.newNotificationsListCmd(),
		c.newNotificationsCountCmd(),
		c.newNotificationsReadCmd(),
		c.newNotificationsReadAllCmd(),
		c.newNotificationsDeleteCmd(),
		c.newNotificationsWatchCmd(),
	)
	return cmd
}

func (c *cli) newNotificationsListCmd() *cobra.Command {
	var (
		limit  int
		unread bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := c.app.Notifications
			if err := store.Fetch(cmd.Context(), limit, unread); err != nil {
				return err
			}
			list := store.Notifications()
			return c.render(cmd, list, notificationTable(list))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", notifications.DefaultLimit, "maximum number of notifications")
	cmd.Flags().BoolVar(&unread, "unread", false, "only unread notifications")
	return withRoute(cmd, "/notifications")
}

func (c *cli) newNotificationsCountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Show the number of unread notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.app.Notifications.FetchUnreadCount(cmd.Context())
			n := c.app.Notifications.UnreadCount()
			return c.render(cmd, map[string]int{"unread": n}, ux.Message{Text: strconv.Itoa(n) + " unread"})
		},
	}
	return withRoute(cmd, "/notifications")
}

func (c *cli) newNotificationsReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("notification", args[0])
			if err != nil {
				return err
			}
			if err := c.app.Notifications.MarkAsRead(cmd.Context(), id); err != nil {
				return err
			}
			return c.success(cmd, map[string]string{"read": id.String()}, "Marked notification %s as read", id)
		},
	}
	return withRoute(cmd, "/notifications")
}

func (c *cli) newNotificationsReadAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Notifications.MarkAllAsRead(cmd.Context()); err != nil {
				return err
			}
			return c.success(cmd, map[string]bool{"read_all": true}, "All notifications marked as read")
		},
	}
	return withRoute(cmd, "/notifications")
}

func (c *cli) newNotificationsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("notification", args[0])
			if err != nil {
				return err
			}
			if err := c.app.Notifications.Delete(cmd.Context(), id); err != nil {
				return err
			}
			return c.success(cmd, map[string]string{"deleted": id.String()}, "Deleted notification %s", id)
		},
	}
	return withRoute(cmd, "/notifications")
}

func (c *cli) newNotificationsWatchCmd() *cobra.Command {
	var (
		interval time.Duration
		listen   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll for notifications until interrupted",
		Long: `Poll for notifications every --interval and print new unread ones.
With --listen, client metrics are served at http://<addr>/metrics while watching.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if listen != "" {
				srv := server.NewMetricsServer(server.Config{Address: listen}, c.app.Registry)
				if err := srv.Listen(); err != nil {
					return err
				}
				go func() {
					if err := srv.Serve(); err != nil {
						c.logger.WithError(err).Warn("metrics server stopped")
					}
				}()
				defer func() {
					if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
						c.logger.WithError(err).Debug("metrics server shutdown")
					}
				}()
				c.notice(cmd, "Serving metrics at %s/metrics", srv.URL())
			}

			seen := make(map[domain.ID]bool)
			c.app.Notifications.Poll(ctx, interval, func(err error) {
				if err != nil {
					c.notice(cmd, "Refresh failed: %v", err)
					return
				}
				c.printNew(cmd, seen)
			})
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "polling interval")
	cmd.Flags().StringVar(&listen, "listen", "", "serve metrics on this address, e.g. 127.0.0.1:9090")
	return withRoute(cmd, "/notifications")
}

// printNew prints unread notifications not printed before.
func (c *cli) printNew(cmd *cobra.Command, seen map[domain.ID]bool) {
	var fresh []domain.Notification
	for _, n := range c.app.Notifications.Unread() {
		if !seen[n.ID] {
			seen[n.ID] = true
			fresh = append(fresh, n)
		}
	}
	if len(fresh) == 0 {
		return
	}
	title := fmt.Sprintf("%d new (%d unread)", len(fresh), c.app.Notifications.UnreadCount())
	t := notificationTable(fresh)
	t.Title = title
	if err := c.render(cmd, fresh, t); err != nil {
		c.logger.WithError(err).Warn("failed to print notifications")
	}
}

func notificationTable(list []domain.Notification) *ux.Table {
	t := ux.NewTable("Notifications", "ID", "", "Title", "Message", "Created")
	t.Empty = "No notifications."
	for _, n := range list {
		marker := "•"
		if n.Read {
			marker = ""
		}
		title := n.Title
		if title == "" {
			title = n.Type
		}
		t.AddRow(n.ID.String(), marker, title, n.Message, n.CreatedAt)
	}
	return t
}

package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/felixgeelhaar/okr/internal/domain"
	"github.com/felixgeelhaar/okr/internal/errors"
	"github.com/felixgeelhaar/okr/internal/objectives"
	"github.com/felixgeelhaar/okr/internal/tui"
	"github.com/felixgeelhaar/okr/internal/ux"
)

func (c *cli) newObjectivesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "objectives",
		Aliases: []string{"obj"},
		Short:   "List and edit objectives",
	}
	cmd.AddCommand(
		c.newObjectivesListCmd(),
		c.newObjectivesGetCmd(),
		c.newObjectivesCreateCmd(),
		c.newObjectivesUpdateCmd(),
		c.newObjectivesDeleteCmd(),
		c.newObjectivesProgressCmd(),
		c.newObjectivesTagsCmd(),
		c.newObjectivesTagStatsCmd(),
		c.newObjectivesByTagCmd(),
	)
	return cmd
}

// parseID validates a command line identifier.
func parseID(kind, value string) (domain.ID, error) {
	id, err := domain.ParseID(value)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeAPIValidation, "invalid "+kind+" id", err)
	}
	return id, nil
}

func (c *cli) newObjectivesListCmd() *cobra.Command {
	var status, tag, search, owner, department string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List objectives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := c.app.Objectives
			for name, value := range map[string]string{
				objectives.FilterStatus:     status,
				objectives.FilterTag:        tag,
				objectives.FilterSearch:     search,
				objectives.FilterOwner:      owner,
				objectives.FilterDepartment: department,
			} {
				if err := store.SetFilter(name, value); err != nil {
					return err
				}
			}

			if _, err := store.Fetch(cmd.Context()); err != nil {
				return err
			}
			list := store.Filtered()
			return c.render(cmd, list, objectiveTable("Objectives", list))
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status ("+statusNames()+")")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by tag")
	cmd.Flags().StringVar(&search, "search", "", "server-side text search")
	cmd.Flags().StringVar(&owner, "owner", "", "filter by owner id")
	cmd.Flags().StringVar(&department, "department", "", "filter by department id")
	return withRoute(cmd, "/objectives")
}

func (c *cli) newObjectivesGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one objective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("objective", args[0])
			if err != nil {
				return err
			}
			o, err := c.app.Objectives.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return c.render(cmd, o, objectiveDetail(o))
		},
	}
	return withRoute(cmd, "/objectives/:id")
}

// objectiveFlags binds the editable objective fields.
type objectiveFlags struct {
	title, description, status, owner, department, unit, due string
	tags                                                     []string
	current, target                                          float64
}

func (f *objectiveFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.title, "title", "", "objective title")
	fs.StringVar(&f.description, "description", "", "longer description")
	fs.StringVar(&f.status, "status", "", "status ("+statusNames()+")")
	fs.StringSliceVar(&f.tags, "tag", nil, "tag (repeatable or comma separated)")
	fs.StringVar(&f.owner, "owner", "", "owner user id")
	fs.StringVar(&f.department, "department", "", "department id")
	fs.Float64Var(&f.current, "current", 0, "current value")
	fs.Float64Var(&f.target, "target", 0, "target value")
	fs.StringVar(&f.unit, "unit", "", "unit of the values, e.g. %")
	fs.StringVar(&f.due, "due", "", "due date (YYYY-MM-DD)")
}

var objectiveFields = []string{"title", "description", "status", "tag", "owner", "department", "current", "target", "unit", "due"}

func (f *objectiveFlags) changed(fs *pflag.FlagSet) bool {
	for _, name := range objectiveFields {
		if fs.Changed(name) {
			return true
		}
	}
	return false
}

// input builds a payload from the flags the user set.
func (f *objectiveFlags) input(fs *pflag.FlagSet) domain.ObjectiveInput {
	var in domain.ObjectiveInput
	if fs.Changed("title") {
		in.Title = &f.title
	}
	if fs.Changed("description") {
		in.Description = &f.description
	}
	if fs.Changed("status") {
		st := domain.NormalizeStatus(f.status)
		in.Status = &st
	}
	if fs.Changed("tag") {
		// --tag "" clears the tags
		tags := make([]string, 0, len(f.tags))
		for _, t := range f.tags {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		in.Tags = &tags
	}
	if fs.Changed("owner") {
		id := domain.ID(f.owner)
		in.OwnerID = &id
	}
	if fs.Changed("department") {
		id := domain.ID(f.department)
		in.DepartmentID = &id
	}
	if fs.Changed("current") {
		in.CurrentValue = &f.current
	}
	if fs.Changed("target") {
		in.TargetValue = &f.target
	}
	if fs.Changed("unit") {
		in.Unit = &f.unit
	}
	if fs.Changed("due") {
		in.DueDate = &f.due
	}
	return in
}

func (c *cli) newObjectivesCreateCmd() *cobra.Command {
	var f objectiveFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an objective",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := c.app.Objectives.Create(cmd.Context(), f.input(cmd.Flags()))
			if err != nil {
				return err
			}
			return c.render(cmd, o, ux.Sections{ux.Successf("Created objective %s", o.ID), objectiveDetail(o)})
		},
	}
	f.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("title")
	return withRoute(cmd, "/objectives")
}

func (c *cli) newObjectivesUpdateCmd() *cobra.Command {
	var f objectiveFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an objective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("objective", args[0])
			if err != nil {
				return err
			}
			if !f.changed(cmd.Flags()) {
				return errors.New(errors.ErrCodeAPIValidation, "nothing to update").
					WithSuggestion("Pass at least one field flag, e.g. --title")
			}
			o, err := c.app.Objectives.Update(cmd.Context(), id, f.input(cmd.Flags()))
			if err != nil {
				return err
			}
			return c.render(cmd, o, ux.Sections{ux.Successf("Updated objective %s", o.ID), objectiveDetail(o)})
		},
	}
	f.register(cmd.Flags())
	return withRoute(cmd, "/objectives/:id")
}

func (c *cli) newObjectivesDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an objective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("objective", args[0])
			if err != nil {
				return err
			}
			ok, err := c.confirm(cmd, yes, fmt.Sprintf("Delete objective %s?", id))
			if err != nil {
				return err
			}
			if !ok {
				return c.render(cmd, map[string]bool{"deleted": false}, ux.Message{Text: "Canceled."})
			}
			if err := c.app.Objectives.Delete(cmd.Context(), id); err != nil {
				return err
			}
			return c.success(cmd, map[string]string{"deleted": id.String()}, "Deleted objective %s", id)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return withRoute(cmd, "/objectives/:id")
}

// confirm asks before a destructive action. A terminal gets a form; piped
// input is read as a y/N answer. CI runs only proceed with --yes.
func (c *cli) confirm(cmd *cobra.Command, yes bool, question string) (bool, error) {
	switch {
	case yes:
		return true, nil
	case tui.InCI():
		c.notice(cmd, "Refusing to continue in CI without --yes.")
		return false, nil
	case tui.IsInteractive():
		return tui.PromptForConfirmation(question, false)
	default:
		return ux.Confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), question, false), nil
	}
}

func (c *cli) newObjectivesProgressCmd() *cobra.Command {
	var (
		value float64
		notes string
	)

	cmd := &cobra.Command{
		Use:   "progress <id>",
		Short: "Record progress on an objective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("objective", args[0])
			if err != nil {
				return err
			}
			o, err := c.app.Objectives.UpdateProgress(cmd.Context(), id, value, notes)
			if err != nil {
				return err
			}
			return c.success(cmd, o, "Objective %s is at %s", o.ID, formatProgress(o))
		},
	}
	cmd.Flags().Float64Var(&value, "value", 0, "new current value")
	cmd.Flags().StringVar(&notes, "notes", "", "note stored with the update")
	_ = cmd.MarkFlagRequired("value")
	return withRoute(cmd, "/objectives/:id")
}

func (c *cli) newObjectivesTagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List objective tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, err := c.app.Objectives.FetchTags(cmd.Context())
			if err != nil {
				return err
			}
			t := ux.NewTable("Tags", "Tag", "Objectives")
			for _, tag := range tags {
				t.AddRow(tag.Name, countCell(tag.Count))
			}
			return c.render(cmd, tags, t)
		},
	}
	return withRoute(cmd, "/objectives")
}

func (c *cli) newObjectivesTagStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag-stats <tag>",
		Short: "Show statistics for one tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := c.app.Objectives.TagStats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.render(cmd, stats, statsDetail("Tag "+args[0], stats))
		},
	}
	return withRoute(cmd, "/reports")
}

func (c *cli) newObjectivesByTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "by-tag",
		Short: "Group objectives by tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := c.app.Objectives
			store.ClearFilters()
			if _, err := store.Fetch(cmd.Context()); err != nil {
				return err
			}
			groups := store.ByTag()

			names := make([]string, 0, len(groups))
			for name := range groups {
				names = append(names, name)
			}
			sort.Strings(names)

			sections := make(ux.Sections, 0, len(names))
			for _, name := range names {
				sections = append(sections, objectiveTable(name, groups[name]))
			}
			if len(sections) == 0 {
				sections = append(sections, ux.Message{Text: "No objectives."})
			}
			return c.render(cmd, groups, sections)
		},
	}
	return withRoute(cmd, "/objectives")
}

func statusNames() string {
	names := make([]string, 0, len(domain.KnownStatuses()))
	for _, s := range domain.KnownStatuses() {
		names = append(names, s.String())
	}
	return strings.Join(names, ", ")
}

func formatProgress(o domain.Objective) string {
	if o.TargetValue == 0 {
		return formatNumber(o.CurrentValue) + o.Unit
	}
	return fmt.Sprintf("%s%% (%s/%s%s)", strconv.FormatFloat(o.Progress(), 'f', 0, 64),
		formatNumber(o.CurrentValue), formatNumber(o.TargetValue), o.Unit)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func countCell(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func objectiveTable(title string, list []domain.Objective) *ux.Table {
	t := ux.NewTable(title, "ID", "Title", "Status", "Progress", "Tags", "Due")
	t.Empty = "No objectives."
	for _, o := range list {
		t.AddRow(o.ID.String(), o.Title, o.Status.String(), formatProgress(o), strings.Join(o.Tags, ", "), o.DueDate)
	}
	return t
}

func objectiveDetail(o domain.Objective) *ux.Detail {
	return ux.NewDetail(o.Title).
		Add("ID", o.ID.String()).
		Add("Status", o.Status.String()).
		Add("Progress", formatProgress(o)).
		Add("Description", o.Description).
		Add("Tags", strings.Join(o.Tags, ", ")).
		Add("Owner", o.OwnerID.String()).
		Add("Department", o.DepartmentID.String()).
		Add("Due", o.DueDate).
		Add("Updated", o.UpdatedAt)
}

func statsDetail(title string, stats domain.Stats) *ux.Detail {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := ux.NewDetail(title)
	for _, k := range keys {
		d.Add(k, fmt.Sprint(stats[k]))
	}
	return d
}

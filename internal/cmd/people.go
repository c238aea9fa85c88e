package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/felixgeelhaar/okr/internal/cache"
	"github.com/felixgeelhaar/okr/internal/domain"
	"github.com/felixgeelhaar/okr/internal/errors"
	"github.com/felixgeelhaar/okr/internal/people"
	"github.com/felixgeelhaar/okr/internal/ux"
)

// userView is the session user as shown by auth commands.
type userView struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name,omitempty" yaml:"name,omitempty"`
	Email          string `json:"email,omitempty" yaml:"email,omitempty"`
	Role           string `json:"role,omitempty" yaml:"role,omitempty"`
	OrganizationID string `json:"organization_id,omitempty" yaml:"organization_id,omitempty"`
}

func newUserView(u domain.User) userView {
	return userView{
		ID:             u.ID.String(),
		Name:           u.DisplayName(),
		Email:          u.Email,
		Role:           u.Role,
		OrganizationID: u.OrganizationID.String(),
	}
}

func (c *cli) newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"people"},
		Short:   "List and edit users",
	}
	cmd.AddCommand(
		c.newUsersListCmd(),
		c.newUsersGetCmd(),
		c.newUsersCreateCmd(),
		c.newUsersUpdateCmd(),
		c.newUsersDeleteCmd(),
		c.newUsersByDepartmentCmd(),
	)
	return cmd
}

func (c *cli) newUsersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := c.app.People.FetchUsers(cmd.Context())
			warnDegraded(c, cmd, "users", r)
			return c.render(cmd, r.Value, userTable("Users", r.Value))
		},
	}
	return withRoute(cmd, "/people")
}

func (c *cli) newUsersGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			u, err := c.app.People.GetUser(cmd.Context(), id)
			if err != nil {
				return err
			}
			return c.render(cmd, u, userDetail(u))
		},
	}
	return withRoute(cmd, "/people/:id")
}

type userFlags struct {
	email, name, role, department, password string
}

var userFields = []string{"email", "name", "role", "department", "password"}

func (f *userFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.email, "email", "", "email address")
	fs.StringVar(&f.name, "name", "", "display name")
	fs.StringVar(&f.role, "role", "", "role, e.g. admin or member")
	fs.StringVar(&f.department, "department", "", "department id")
	fs.StringVar(&f.password, "password", "", "initial password")
}

func (f *userFlags) changed(fs *pflag.FlagSet) bool {
	for _, name := range userFields {
		if fs.Changed(name) {
			return true
		}
	}
	return false
}

func (f *userFlags) input(fs *pflag.FlagSet) domain.UserInput {
	var in domain.UserInput
	if fs.Changed("email") {
		in.Email = &f.email
	}
	if fs.Changed("name") {
		in.Name = &f.name
	}
	if fs.Changed("role") {
		in.Role = &f.role
	}
	if fs.Changed("department") {
		id := domain.ID(f.department)
		in.Department = &id
	}
	if fs.Changed("password") {
		in.Password = &f.password
	}
	return in
}

func (c *cli) newUsersCreateCmd() *cobra.Command {
	var f userFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := c.app.People.CreateUser(cmd.Context(), f.input(cmd.Flags()))
			if err != nil {
				return err
			}
			return c.render(cmd, u, ux.Sections{ux.Successf("Created user %s", u.ID), userDetail(u)})
		},
	}
	f.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("email")
	return withRoute(cmd, "/people")
}

func (c *cli) newUsersUpdateCmd() *cobra.Command {
	var f userFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			if !f.changed(cmd.Flags()) {
				return errors.New(errors.ErrCodeAPIValidation, "nothing to update").
					WithSuggestion("Pass at least one field flag, e.g. --role")
			}
			u, err := c.app.People.UpdateUser(cmd.Context(), id, f.input(cmd.Flags()))
			if err != nil {
				return err
			}
			return c.render(cmd, u, ux.Sections{ux.Successf("Updated user %s", u.ID), userDetail(u)})
		},
	}
	f.register(cmd.Flags())
	return withRoute(cmd, "/people/:id")
}

func (c *cli) newUsersDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			ok, err := c.confirm(cmd, yes, fmt.Sprintf("Delete user %s?", id))
			if err != nil {
				return err
			}
			if !ok {
				return c.render(cmd, map[string]bool{"deleted": false}, ux.Message{Text: "Canceled."})
			}
			if err := c.app.People.DeleteUser(cmd.Context(), id); err != nil {
				return err
			}
			return c.success(cmd, map[string]string{"deleted": id.String()}, "Deleted user %s", id)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return withRoute(cmd, "/people/:id")
}

func (c *cli) newUsersByDepartmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "by-department",
		Short: "Group users by department",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r := c.app.People.FetchUsers(ctx)
			warnDegraded(c, cmd, "users", r)
			if _, err := c.app.People.FetchDepartments(ctx); err != nil {
				c.logger.WithError(err).Debug("department names unavailable")
			}

			groups := c.app.People.ByDepartment()
			keys := make([]string, 0, len(groups))
			for k := range groups {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			sections := make(ux.Sections, 0, len(keys))
			for _, k := range keys {
				title := k
				if k == people.Unassigned {
					title = "Unassigned"
				} else if d, ok := c.app.People.DepartmentByID(domain.ID(k)); ok {
					title = d.Name
				}
				sections = append(sections, userTable(title, groups[k]))
			}
			if len(sections) == 0 {
				sections = append(sections, ux.Message{Text: "No users."})
			}
			return c.render(cmd, groups, sections)
		},
	}
	return withRoute(cmd, "/departments")
}

func userTable(title string, users []domain.User) *ux.Table {
	t := ux.NewTable(title, "ID", "Name", "Email", "Role", "Department")
	t.Empty = "No users."
	for _, u := range users {
		t.AddRow(u.ID.String(), u.DisplayName(), u.Email, u.Role, u.Department.String())
	}
	return t
}

func userDetail(u domain.User) *ux.Detail {
	d := ux.NewDetail(u.DisplayName()).
		Add("ID", u.ID.String()).
		Add("Email", u.Email).
		Add("Role", u.Role).
		Add("Department", u.Department.String()).
		Add("Organization", u.OrganizationID.String())
	if u.EmailVerified {
		d.Add("Verified", "yes")
	}

	keys := make([]string, 0, len(u.Profile))
	for k := range u.Profile {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		d.Add(k, fmt.Sprint(u.Profile[k]))
	}
	return d
}

func (c *cli) newDepartmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "departments",
		Aliases: []string{"dept"},
		Short:   "List and edit departments",
	}
	cmd.AddCommand(
		c.newDepartmentsListCmd(),
		c.newDepartmentsGetCmd(),
		c.newDepartmentsCreateCmd(),
		c.newDepartmentsUpdateCmd(),
		c.newDepartmentsDeleteCmd(),
	)
	return cmd
}

func (c *cli) newDepartmentsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List departments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := c.app.People.FetchDepartments(cmd.Context())
			if err != nil {
				return err
			}
			return c.render(cmd, list, departmentTable(list))
		},
	}
	return withRoute(cmd, "/departments")
}

func (c *cli) newDepartmentsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("department", args[0])
			if err != nil {
				return err
			}
			d, err := c.app.People.GetDepartment(cmd.Context(), id)
			if err != nil {
				return err
			}
			return c.render(cmd, d, departmentDetail(d))
		},
	}
	return withRoute(cmd, "/departments")
}

type departmentFlags struct {
	name, description, parent, manager string
}

var departmentFields = []string{"name", "description", "parent", "manager"}

func (f *departmentFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "department name")
	fs.StringVar(&f.description, "description", "", "description")
	fs.StringVar(&f.parent, "parent", "", "parent department id")
	fs.StringVar(&f.manager, "manager", "", "manager user id")
}

func (f *departmentFlags) changed(fs *pflag.FlagSet) bool {
	for _, name := range departmentFields {
		if fs.Changed(name) {
			return true
		}
	}
	return false
}

func (f *departmentFlags) input(fs *pflag.FlagSet) domain.DepartmentInput {
	var in domain.DepartmentInput
	if fs.Changed("name") {
		in.Name = &f.name
	}
	if fs.Changed("description") {
		in.Description = &f.description
	}
	if fs.Changed("parent") {
		id := domain.ID(f.parent)
		in.ParentID = &id
	}
	if fs.Changed("manager") {
		id := domain.ID(f.manager)
		in.ManagerID = &id
	}
	return in
}

func (c *cli) newDepartmentsCreateCmd() *cobra.Command {
	var f departmentFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a department",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.app.People.CreateDepartment(cmd.Context(), f.input(cmd.Flags()))
			if err != nil {
				return err
			}
			return c.render(cmd, d, ux.Sections{ux.Successf("Created department %s", d.ID), departmentDetail(d)})
		},
	}
	f.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("name")
	return withRoute(cmd, "/departments")
}

func (c *cli) newDepartmentsUpdateCmd() *cobra.Command {
	var f departmentFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("department", args[0])
			if err != nil {
				return err
			}
			if !f.changed(cmd.Flags()) {
				return errors.New(errors.ErrCodeAPIValidation, "nothing to update").
					WithSuggestion("Pass at least one field flag, e.g. --name")
			}
			d, err := c.app.People.UpdateDepartment(cmd.Context(), id, f.input(cmd.Flags()))
			if err != nil {
				return err
			}
			return c.render(cmd, d, ux.Sections{ux.Successf("Updated department %s", d.ID), departmentDetail(d)})
		},
	}
	f.register(cmd.Flags())
	return withRoute(cmd, "/departments")
}

func (c *cli) newDepartmentsDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a department; its users become unassigned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("department", args[0])
			if err != nil {
				return err
			}
			ok, err := c.confirm(cmd, yes, fmt.Sprintf("Delete department %s?", id))
			if err != nil {
				return err
			}
			if !ok {
				return c.render(cmd, map[string]bool{"deleted": false}, ux.Message{Text: "Canceled."})
			}
			if err := c.app.People.DeleteDepartment(cmd.Context(), id); err != nil {
				return err
			}
			return c.success(cmd, map[string]string{"deleted": id.String()}, "Deleted department %s", id)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return withRoute(cmd, "/departments")
}

func departmentTable(list []domain.Department) *ux.Table {
	t := ux.NewTable("Departments", "ID", "Name", "Parent", "Manager", "Description")
	t.Empty = "No departments."
	for _, d := range list {
		t.AddRow(d.ID.String(), d.Name, d.ParentID.String(), d.ManagerID.String(), d.Description)
	}
	return t
}

func departmentDetail(d domain.Department) *ux.Detail {
	return ux.NewDetail(d.Name).
		Add("ID", d.ID.String()).
		Add("Description", d.Description).
		Add("Parent", d.ParentID.String()).
		Add("Manager", d.ManagerID.String())
}

func (c *cli) newTeamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "List teams, falling back to departments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := c.app.People.FetchTeams(cmd.Context())
			if r.Source == cache.SourceFallback && len(r.Value) > 0 {
				c.notice(cmd, "Teams are unavailable; showing departments instead")
			} else {
				warnDegraded(c, cmd, "teams", r)
			}

			t := ux.NewTable("Teams", "ID", "Name", "Department")
			t.Empty = "No teams."
			for _, team := range r.Value {
				t.AddRow(team.ID.String(), team.Name, team.DepartmentID.String())
			}
			return c.render(cmd, r.Value, t)
		},
	}
	return withRoute(cmd, "/structure")
}

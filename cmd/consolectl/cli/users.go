package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benagdipa/fwpm-sub001/internal/users"
	"github.com/benagdipa/fwpm-sub001/internal/view"
)

func newUsersCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage console user accounts",
	}
	cmd.AddCommand(
		newUsersListCommand(e),
		newUsersCreateCommand(e),
		newUsersSetRoleCommand(e),
		newUsersActivationCommand(e, "activate", true),
		newUsersActivationCommand(e, "deactivate", false),
		newUsersResetPasswordCommand(e),
		newUsersDeleteCommand(e),
	)
	return cmd
}

// manager mounts a user manager for one command run.
func (e *env) manager(ctx context.Context) (*users.Manager, error) {
	c, err := e.client(ctx)
	if err != nil {
		return nil, err
	}
	return users.NewManager(users.NewRepository(c.Users()), nil, nil), nil
}

type userRow struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Active     bool   `json:"is_active"`
}

func newUsersListCommand(e *env) *cobra.Command {
	var query, tab string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users, optionally searched and narrowed to one tab",
		Example: `  consolectl users list --search jane
  consolectl users list --tab inactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(users.BucketKeys(), tab) {
				return fmt.Errorf("unknown tab %q (one of %s)", tab, strings.Join(users.BucketKeys(), ", "))
			}
			m, err := e.manager(cmd.Context())
			if err != nil {
				return err
			}
			defer m.Unmount()
			list, err := m.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			var visible []users.User
			for _, b := range users.Buckets(users.Filter(list, query)) {
				if b.Key == tab {
					visible = b.Users
				}
			}
			rows := make([]userRow, len(visible))
			for i, u := range visible {
				rows[i] = userRow{ID: u.ID, Username: u.Username, Email: u.Email, Name: u.FullName(), Role: u.Role, Department: u.Department, Active: u.IsActive}
			}
			if e.opts.JSON {
				return e.printJSON(cmd.OutOrStdout(), rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users match.")
				return nil
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tNAME\tROLE\tACTIVE")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%t\n", r.ID, r.Username, r.Email, r.Name, view.RoleLabel(r.Role), r.Active)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&query, "search", "s", "", "case-insensitive match on username, email or name")
	cmd.Flags().StringVar(&tab, "tab", "all", "tab to show")
	return cmd
}

func newUsersCreateCommand(e *env) *cobra.Command {
	var d users.Draft
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user and assign its role",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := e.manager(cmd.Context())
			if err != nil {
				return err
			}
			defer m.Unmount()
			u, err := m.CreateUser(cmd.Context(), d)
			var partial *users.PartialCreateError
			if errors.As(err, &partial) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: user %s (id %d) was created but the role could not be assigned and the account could not be removed.\n", partial.User.Username, partial.User.ID)
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d) as %s.\n", u.Username, u.ID, view.RoleLabel(u.Role))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&d.Username, "username", "", "login name")
	f.StringVar(&d.Email, "email", "", "email address")
	f.StringVar(&d.FirstName, "first-name", "", "first name")
	f.StringVar(&d.LastName, "last-name", "", "last name")
	f.StringVar(&d.Password, "password", "", "initial password")
	f.StringVar(&d.ConfirmPassword, "confirm-password", "", "initial password again")
	f.StringVar(&d.Role, "role", "user", "role to assign")
	f.StringVar(&d.Department, "department", "", "department")
	return cmd
}

func newUsersSetRoleCommand(e *env) *cobra.Command {
	var department string
	cmd := &cobra.Command{
		Use:   "set-role ID ROLE",
		Short: "Assign a role and department",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			m, err := e.manager(cmd.Context())
			if err != nil {
				return err
			}
			defer m.Unmount()
			if err := m.SetRole(cmd.Context(), id, args[1], department); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %d is now %s.\n", id, view.RoleLabel(args[1]))
			return nil
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "department")
	return cmd
}

// newUsersActivationCommand toggles only when the account is not already in
// the wanted state.
func newUsersActivationCommand(e *env, use string, want bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: strings.ToUpper(use[:1]) + use[1:] + " an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			m, err := e.manager(cmd.Context())
			if err != nil {
				return err
			}
			defer m.Unmount()
			if _, err := m.ListUsers(cmd.Context()); err != nil {
				return err
			}
			u, ok := m.Find(id)
			if !ok {
				return fmt.Errorf("user %d: %w", id, users.ErrNotFound)
			}
			if u.IsActive == want {
				fmt.Fprintf(cmd.OutOrStdout(), "User %s is already %sd.\n", u.Username, use)
				return nil
			}
			if _, err := m.ToggleActive(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s %sd.\n", u.Username, use)
			return nil
		},
	}
}

func newUsersResetPasswordCommand(e *env) *cobra.Command {
	var password, confirm string
	cmd := &cobra.Command{
		Use:   "reset-password ID",
		Short: "Set a new password for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			m, err := e.manager(cmd.Context())
			if err != nil {
				return err
			}
			defer m.Unmount()
			if err := m.ResetPassword(cmd.Context(), id, password, confirm); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password of user %d reset.\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password")
	cmd.Flags().StringVar(&confirm, "confirm-password", "", "new password again")
	return cmd
}

func newUsersDeleteCommand(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an account permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !yes {
				return errors.New("refusing to delete without --yes")
			}
			m, err := e.manager(cmd.Context())
			if err != nil {
				return err
			}
			defer m.Unmount()
			if err := m.DeleteUser(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %d deleted.\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}

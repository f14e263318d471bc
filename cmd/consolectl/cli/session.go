package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benagdipa/fwpm-sub001/internal/apiclient"
	"github.com/benagdipa/fwpm-sub001/internal/auth"
	"github.com/benagdipa/fwpm-sub001/internal/platform/httpx"
	"github.com/benagdipa/fwpm-sub001/internal/shared"
	"github.com/benagdipa/fwpm-sub001/internal/view"
)

func newLoginCommand(e *env) *cobra.Command {
	var email, password string
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Example: `  consolectl login --email admin@example.com --password-stdin < pass.txt
  consolectl login --email admin@example.com --password secret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if strings.TrimSpace(email) == "" || password == "" {
				return errors.New("--email and a password are required")
			}
			res, err := e.anonymous().Auth().EmailLogin(cmd.Context(), apiclient.Credentials{Email: strings.TrimSpace(email), Password: password})
			if err != nil {
				if errors.Is(err, httpx.ErrUnauthorized) || errors.Is(err, httpx.ErrValidation) || errors.Is(err, httpx.ErrForbidden) {
					return shared.ErrInvalidCredentials
				}
				return err
			}
			token := res.BearerToken()
			if token == "" {
				return errors.New("backend returned no token")
			}
			if err := e.store.Save(token, res.User); err != nil {
				return err
			}
			id := auth.IdentityOf(res.User)
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s).\n", id.Username, view.RoleLabel(id.Role))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newLogoutCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cleared, err := e.store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			if cleared {
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "No session to clear.")
			}
			return nil
		},
	}
}

func newWhoamiCommand(e *env) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			var profile *apiclient.Profile
			if refresh {
				c, err := e.client(cmd.Context())
				if err != nil {
					return err
				}
				p, err := c.Auth().GetProfile(cmd.Context())
				if err != nil {
					return err
				}
				profile = &p
			} else {
				p, err := e.store.User()
				if err != nil {
					return err
				}
				if p == nil {
					return errNotSignedIn
				}
				profile = p
			}
			if e.opts.JSON {
				return e.printJSON(cmd.OutOrStdout(), profile)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\n", profile.Username, profile.Email)
			fmt.Fprintf(out, "Role: %s\n", view.RoleLabel(profile.Role))
			if profile.Department != "" {
				fmt.Fprintf(out, "Department: %s\n", profile.Department)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the profile from the backend")
	return cmd
}

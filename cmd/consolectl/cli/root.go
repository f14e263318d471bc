// Package cli implements consolectl, the terminal companion of the console.
// It keeps its bearer token in a YAML session file and clears it on the
// first 401 the backend returns.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/benagdipa/fwpm-sub001/internal/apiclient"
	"github.com/benagdipa/fwpm-sub001/internal/shared"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitExpired = 2
)

// Options are the persistent flags shared by every command.
type Options struct {
	APIBaseURL  string
	SessionFile string
	RedisAddr   string
	Timeout     time.Duration
	JSON        bool
}

type env struct {
	opts  *Options
	store *apiclient.FileStore
}

// Execute runs consolectl with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, apiclient.ErrSessionExpired):
		fmt.Fprintln(stderr, "Session expired. Run `consolectl login` to sign in again.")
		return ExitExpired
	case errors.Is(err, errNotSignedIn):
		fmt.Fprintln(stderr, "Not signed in. Run `consolectl login` first.")
		return ExitExpired
	case errors.Is(err, shared.ErrInvalidCredentials):
		fmt.Fprintln(stderr, "Error: invalid email or password.")
		return ExitError
	default:
		fmt.Fprintf(stderr, "Error: %s\n", errorMessage(err))
		return ExitError
	}
}

// errorMessage hides backend response bodies; local errors print as is.
func errorMessage(err error) string {
	var httpErr *apiclient.HTTPError
	if errors.As(err, &httpErr) {
		return shared.UserSafeMessage(err)
	}
	return err.Error()
}

var errNotSignedIn = errors.New("not signed in")

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &Options{}
	e := &env{opts: opts}
	root := &cobra.Command{
		Use:           "consolectl",
		Short:         "Administer the fleet performance console from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := opts.SessionFile
			if path == "" {
				p, err := apiclient.DefaultSessionPath()
				if err != nil {
					return fmt.Errorf("locate session file: %w", err)
				}
				path = p
			}
			e.store = apiclient.NewFileStore(path)
			return nil
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.APIBaseURL, "api", envOr("API_BASE_URL", "http://127.0.0.1:8000/api"), "backend API base URL")
	flags.StringVar(&opts.SessionFile, "session-file", os.Getenv("CONSOLECTL_SESSION"), "session file (default: user config dir)")
	flags.StringVar(&opts.RedisAddr, "redis", envOr("REDIS_ADDR", "127.0.0.1:6379"), "Redis address of the job queue")
	flags.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "backend call timeout")
	flags.BoolVar(&opts.JSON, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newLoginCommand(e),
		newLogoutCommand(e),
		newWhoamiCommand(e),
		newUsersCommand(e),
		newSitesCommand(e),
		newTasksCommand(e),
		newDevicesCommand(e),
		newJobsCommand(e),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// anonymous returns an API client without a session, for login.
func (e *env) anonymous() *apiclient.Client {
	return apiclient.New(apiclient.Config{BaseURL: e.opts.APIBaseURL, Timeout: e.opts.Timeout})
}

// client returns an API client bound to the session file. It fails early when
// no token is stored.
func (e *env) client(ctx context.Context) (*apiclient.Client, error) {
	token, err := e.store.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errNotSignedIn
	}
	return e.anonymous().WithStore(e.store), nil
}

func (e *env) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

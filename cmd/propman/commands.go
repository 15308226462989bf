package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/tenants"
)

func newRootCommand(a *app) *cobra.Command {
	var printMetrics bool

	cmd := &cobra.Command{
		Use:           "propman",
		Short:         "Session and request client for the property-management API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(commandContext(cmd), cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if printMetrics {
				return a.writeMetrics(cmd.OutOrStdout())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(cmd.OutOrStdout(), a.cfg.GetAppName())
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().BoolVar(&printMetrics, "metrics", false, "Print session metrics after the command")

	cmd.AddCommand(newLoginCommand(a))
	cmd.AddCommand(newLogoutCommand(a))
	cmd.AddCommand(newWhoamiCommand(a))
	cmd.AddCommand(newStatusCommand(a))
	cmd.AddCommand(newRequestCommand(a))
	cmd.AddCommand(newTenantsCommand(a))
	return cmd
}

func newLoginCommand(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			session, err := a.client.Login(commandContext(cmd), email, password)
			if err != nil {
				return err
			}
			name := email
			if session.User != nil && session.User.FullName() != "" {
				name = session.User.FullName()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email address")
	cmd.Flags().StringVar(&password, "password", "", "Account password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.client.IsAuthenticated() {
				return auth.ErrNotAuthenticated
			}
			user, ok := a.client.CurrentUser()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Logged in (no profile stored)")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", user.FullName(), user.Email)
			if user.Role != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "role: %s\n", user.Role)
			}
			return nil
		},
	}
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is stored and when its access token expires",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "api: %s\n", a.cfg.GetAPIURL())
			fmt.Fprintf(out, "store: %s (%s)\n", a.cfg.GetStoreKind(), a.cfg.GetStorePath())
			session, ok := a.client.Store().Current()
			if !ok {
				fmt.Fprintln(out, "session: none")
				return nil
			}

			fmt.Fprintln(out, "session: stored")
			if session.User != nil {
				fmt.Fprintf(out, "user: %s\n", session.User.Email)
			}
			inspector := a.client.Inspector()
			if exp, ok := inspector.ExpiresAt(); ok {
				fmt.Fprintf(out, "access token expires: %s (in %s)\n", exp.Format(time.RFC3339), time.Until(exp).Round(time.Second))
			} else {
				fmt.Fprintln(out, "access token expires: unknown")
			}
			fmt.Fprintf(out, "refresh before next request: %t\n", inspector.IsExpiredOrExpiringSoon(a.cfg.GetExpiryBuffer()))
			return nil
		},
	}
}

func newRequestCommand(a *app) *cobra.Command {
	var (
		data    string
		noRetry bool
	)

	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send an authenticated request and print the response body",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := strings.ToUpper(args[0])
			req := auth.Request{Method: method, URL: args[1], Header: a.client.AuthHeaders()}
			if data != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				req.Body = []byte(data)
			}

			var options []auth.ExecuteOption
			if noRetry {
				options = append(options, auth.WithoutRetry())
			}
			resp, err := a.client.Execute(commandContext(cmd), req, options...)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s -> %s\n", method, args[1], resp.Status)
			writeBody(cmd.OutOrStdout(), body)

			if resp.StatusCode >= http.StatusBadRequest {
				return &auth.HTTPError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "JSON request body")
	cmd.Flags().BoolVar(&noRetry, "no-retry", false, "Do not refresh and retry on 401")
	return cmd
}

func newTenantsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Browse tenant records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var offset, limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := tenants.NewAPIRepo(a.client).List(commandContext(cmd), offset, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range page.Results {
				fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", t.ID, t.FullName(), t.Email, t.Unit)
			}
			fmt.Fprintf(out, "%d of %d\n", len(page.Results), page.Count)
			return nil
		},
	}
	list.Flags().IntVar(&offset, "offset", 0, "Number of tenants to skip")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum number of tenants to show")

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show one tenant as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid tenant id %q", args[0])
			}
			t, err := tenants.NewAPIRepo(a.client).Get(commandContext(cmd), id)
			if err != nil {
				return err
			}
			body, err := json.Marshal(t)
			if err != nil {
				return err
			}
			writeBody(cmd.OutOrStdout(), body)
			return nil
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

// writeBody pretty-prints JSON bodies and copies anything else as is
func writeBody(w io.Writer, body []byte) {
	if len(body) == 0 {
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err == nil {
		body = pretty.Bytes()
	}
	fmt.Fprintln(w, strings.TrimRight(string(body), "\n"))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

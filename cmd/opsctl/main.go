// Package main is opsctl, the operator console for the policy and claim API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kylejryan/insurance-ops/internal/apiclient"
	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/auth"
	"github.com/kylejryan/insurance-ops/internal/config"
	"github.com/kylejryan/insurance-ops/internal/logging"
	"github.com/kylejryan/insurance-ops/internal/models"
	"github.com/kylejryan/insurance-ops/internal/quote"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	root := newRootCmd(&cli{cfg: cfg, out: os.Stdout, errOut: os.Stderr})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", describe(err))
		os.Exit(exitCode(err))
	}
}

// cli is the state shared by every command.
type cli struct {
	cfg     config.ClientConfig
	out     io.Writer
	errOut  io.Writer
	verbose bool

	client   *apiclient.Client
	sessions *apiclient.SessionStore
	console  *apiclient.Console
	pricing  quote.Calculator
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "opsctl",
		Short:         "Operate insurance policies and claims",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}
	root.PersistentFlags().StringVar(&c.cfg.APIURL, "api", c.cfg.APIURL, "operations API base URL")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log client diagnostics to stderr")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.registerCmd(),
		c.healthCmd(),
		c.tableCmd(),
		c.quoteCmd(),
		c.policyCmd(),
		c.claimCmd(),
	)
	return root
}

func (c *cli) setup() error {
	if c.console != nil {
		return nil
	}
	hc := &http.Client{Timeout: c.cfg.Timeout}
	c.client = apiclient.New(c.cfg.APIURL, hc)
	if c.pricing == nil {
		c.pricing = quote.NewClient(c.cfg.QuoteURL, hc)
	}

	path := c.cfg.SessionFile
	if path == "" {
		p, err := apiclient.DefaultSessionPath()
		if err != nil {
			return fmt.Errorf("locate session file: %w", err)
		}
		path = p
	}
	c.sessions = &apiclient.SessionStore{Path: path}
	s, _, err := c.sessions.Load(time.Now())
	if err != nil {
		return err
	}

	level := "warn"
	if c.verbose {
		level = "debug"
	}
	logger := logging.NewWriter(c.errOut, config.LoggingConfig{Level: level, Format: "text"})
	c.console = apiclient.NewConsole(c.client, s,
		apiclient.WithSessionStore(c.sessions),
		apiclient.WithConsoleLogger(logger),
	)
	logger.Debug("console ready", "api", c.cfg.APIURL, "session_file", path, "signed_in", s.Token != "")
	return nil
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("OPS_PASSWORD")
			}
			s, err := c.console.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			return c.print(s.Principal)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (default $OPS_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.console.Logout()
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := c.console.Session()
			if !s.Valid(time.Now()) {
				return apperr.New(apperr.KindAuthentication, "", "not signed in")
			}
			return c.print(s.Principal)
		},
	}
}

func (c *cli) registerCmd() *cobra.Command {
	var in auth.RegisterInput
	var role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long:  "Create an account. Creating an ADMIN account requires an administrator session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Role = models.Role(role)
			var s *apiclient.Session
			if cur := c.console.Session(); cur.Valid(time.Now()) {
				s = &cur
			}
			u, err := c.client.Register(cmd.Context(), s, in)
			if err != nil {
				return err
			}
			return c.print(u)
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "password")
	cmd.Flags().StringVar(&role, "role", "", "USER or ADMIN (default USER)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := c.client.Health(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(h)
		},
	}
}

func (c *cli) tableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "table",
		Short: "Print the lifecycle transition table",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.console.Table(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(t.Rules())
		},
	}
}

func (c *cli) quoteCmd() *cobra.Command {
	var (
		req      models.QuoteRequest
		coverage string
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a policy with the pricing service",
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseDecimal("coverage", coverage)
			if err != nil {
				return err
			}
			req.CoverageAmount = amount
			q, err := c.pricing.Calculate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.print(q)
		},
	}
	cmd.Flags().IntVar(&req.Age, "age", 0, "applicant age")
	cmd.Flags().StringVar(&coverage, "coverage", "", "coverage amount")
	cmd.Flags().StringSliceVar(&req.RiskFactors, "risk", nil, "risk factor (repeatable)")
	_ = cmd.MarkFlagRequired("coverage")
	return cmd
}

func parseDecimal(name, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, apperr.Validation(name + " must be a decimal number")
	}
	return d, nil
}

var exitCodes = map[apperr.Kind]int{
	apperr.KindValidation:     2,
	apperr.KindAuthentication: 3,
	apperr.KindAuthorization:  4,
	apperr.KindNotFound:       5,
	apperr.KindConflict:       6,
	apperr.KindCollaborator:   7,
	apperr.KindUpload:         8,
}

func exitCode(err error) int {
	if code, ok := exitCodes[apperr.KindOf(err)]; ok {
		return code
	}
	return 1
}

func describe(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		if e.Kind == apperr.KindAuthentication {
			return e.Message + " (run opsctl login)"
		}
		return e.Kind.String() + ": " + apperr.Message(err)
	}
	return err.Error()
}

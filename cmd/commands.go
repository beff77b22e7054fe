package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"io"
	"log/slog"
	"os"
	"quickcommerce/internal/app"
	"quickcommerce/internal/config"
	"quickcommerce/internal/services/purchases"
	"strings"
	"time"
)

const closeTimeout = 5 * time.Second

type cli struct {
	configPath string
	app        *app.App
	root       *cobra.Command

	// onSetup sees the app right after it is built.
	onSetup func(*app.App)
}

func newCLI() *cli {
	c := &cli{}
	c.root = c.newRootCmd()
	return c
}

// Execute runs the command and closes the app whatever the command returned,
// so telemetry is flushed and connections are released on failures too.
func (c *cli) Execute(ctx context.Context) error {
	runErr := c.root.ExecuteContext(ctx)
	closeErr := c.close()
	if runErr != nil {
		return runErr
	}
	return closeErr
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	a := c.app
	c.app = nil

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		a.Log.Warn("failed to close app", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (c *cli) newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "quickcommerce",
		Short:         "Purchase insights from the command line",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "path to the yaml config (defaults to $CONFIG_PATH)")

	rootCmd.AddCommand(
		c.newLoginCommand(),
		c.newRegisterCommand(),
		c.newLogoutCommand(),
		c.newWhoamiCommand(),
		c.newSummaryCommand(),
		c.newHeatmapCommand(),
		c.newTrendsCommand(),
		c.newUploadCommand(),
		c.newProfileCommand(),
		c.newDashboardCommand(),
	)
	return rootCmd
}

func (c *cli) setup(cmd *cobra.Command) error {
	if !cmd.Runnable() || cmd.Name() == "help" {
		return nil
	}

	cfg := config.GetConfig(c.configPath)
	log := setupSlog(cfg.Env)

	stderr := cmd.ErrOrStderr()
	navigate := func() {
		fmt.Fprintln(stderr, "You are logged out. Run 'quickcommerce login' to continue.")
	}

	a, err := app.New(cmd.Context(), cfg, log, navigate)
	if err != nil {
		return err
	}
	c.app = a
	if c.onSetup != nil {
		c.onSetup(a)
	}
	return nil
}

func (c *cli) newLoginCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Args:  cobra.NoArgs,
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordOrPrompt(cmd, password)
			if err != nil {
				return err
			}
			user, err := c.app.Auth.Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) newRegisterCommand() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Args:  cobra.NoArgs,
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordOrPrompt(cmd, password)
			if err != nil {
				return err
			}
			user, err := c.app.Auth.Register(cmd.Context(), name, email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s\n", user.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Args:  cobra.NoArgs,
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.app.Auth.Logout(cmd.Context())
			return nil
		},
	}
}

func (c *cli) newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Args:  cobra.NoArgs,
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := c.app.Auth.Whoami(cmd.Context())
			if err != nil {
				return err
			}
			renderIdentity(cmd.OutOrStdout(), id, time.Now())
			return nil
		},
	}
}

func (c *cli) newSummaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Args:  cobra.NoArgs,
		Short: "Show spend KPIs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.app.Insights.Summary(cmd.Context())
			if err != nil {
				return err
			}
			renderSummary(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func (c *cli) newHeatmapCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "heatmap",
		Args:  cobra.NoArgs,
		Short: "Show spend by weekday and hour",
		RunE: func(cmd *cobra.Command, _ []string) error {
			hm, err := c.app.Insights.Heatmap(cmd.Context())
			if err != nil {
				return err
			}
			renderHeatmap(cmd.OutOrStdout(), hm)
			return nil
		},
	}
}

func (c *cli) newTrendsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "trends",
		Args:  cobra.NoArgs,
		Short: "Show spend over time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := c.app.Insights.Trends(cmd.Context())
			if err != nil {
				return err
			}
			renderTrends(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func (c *cli) newUploadCommand() *cobra.Command {
	var previewOnly bool

	cmd := &cobra.Command{
		Use:   "upload <file.csv>",
		Args:  cobra.ExactArgs(1),
		Short: "Upload a purchases CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			sheet, err := purchases.ParseCSV(f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			renderPreview(out, sheet.Preview())
			if previewOnly {
				return nil
			}

			res, err := c.app.Purchases.Upload(cmd.Context(), sheet)
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}
			renderUpload(out, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&previewOnly, "preview", false, "only show the preview")
	return cmd
}

func (c *cli) newProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Args:  cobra.NoArgs,
		Short: "Read or change profile preferences",
	}

	get := &cobra.Command{
		Use:   "get",
		Args:  cobra.NoArgs,
		Short: "Show the profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := c.app.Settings.Profile(cmd.Context())
			if err != nil {
				return err
			}
			renderProfile(cmd.OutOrStdout(), p)
			return nil
		},
	}

	var (
		name    string
		budget  float64
		goals   string
		dietary []string
	)
	set := &cobra.Command{
		Use:   "set",
		Args:  cobra.NoArgs,
		Short: "Update the profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, err := c.app.Settings.Profile(ctx)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("name") {
				p.Name = name
			}
			if flags.Changed("weekly-budget") {
				p.WeeklyBudget = budget
			}
			if flags.Changed("health-goals") {
				p.HealthGoals = goals
			}
			if flags.Changed("diet") {
				p.DietaryPreferences = dietary
			}

			updated, err := c.app.Settings.UpdateProfile(ctx, *p)
			if err != nil {
				return err
			}
			renderProfile(cmd.OutOrStdout(), updated)
			return nil
		},
	}
	set.Flags().StringVar(&name, "name", "", "display name")
	set.Flags().Float64Var(&budget, "weekly-budget", 0, "weekly budget")
	set.Flags().StringVar(&goals, "health-goals", "", "health goals")
	set.Flags().StringSliceVar(&dietary, "diet", nil, "dietary preferences, comma separated")

	cmd.AddCommand(get, set)
	return cmd
}

func (c *cli) newDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Args:  cobra.NoArgs,
		Short: "Show the dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := c.app.Insights.Dashboard(ctx, c.app.Sessions.User(ctx))
			if err != nil {
				return err
			}
			renderDashboard(cmd.OutOrStdout(), d)
			return nil
		},
	}
}

func passwordOrPrompt(cmd *cobra.Command, password string) (string, error) {
	if password != "" {
		return password, nil
	}
	if env := os.Getenv("QUICKCOMMERCE_PASSWORD"); env != "" {
		return env, nil
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprint(stderr, "Password: ")
	return readPassword(cmd.InOrStdin(), stderr)
}

// readPassword reads without echo from a terminal and falls back to one line
// for piped input.
func readPassword(in io.Reader, stderr io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

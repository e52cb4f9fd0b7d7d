package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bossline/internal/app"
	"bossline/internal/config"
	"bossline/internal/criteria"
	"bossline/internal/db"
	"bossline/internal/domain"
	"bossline/internal/history"
	"bossline/internal/selftest"
	"bossline/internal/session"
	"bossline/internal/stubserver"
)

var rootCmd = &cobra.Command{
	Use:   "bossline",
	Short: "Bossline CLI",
	Long: `Bossline submits questions to a Boss orchestration backend and renders
the synthesized answer.
Core concepts:
- Boss: the backend that fans a question out to per-domain owner agents and
  merges their answers.
- Owner: one domain agent (e.g. frontend-ecommerce); each contributes
  coverage, findings, gaps, and next actions.
- Intent: what kind of answer you want — design, impl_plan, risk, or qa.
- Acceptance criteria: checklist items the answer should address; bossline
  keeps a deduplicated saved set and merges in --criterion flags per ask.
- Workspace: a directory holding bossline.yml and the .bossline database
  with the ask journal, the saved criteria, and the connection state.
- 'bossline serve' runs a local stub boss for development; 'bossline
  selftest' exercises the client against in-memory transports only.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("BOSSLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("api-base", "", "boss API base URL (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("api-base", rootCmd.PersistentFlags().Lookup("api-base"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(ownersCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(criteriaCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(selftestCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the workspace",
		Long:  "Create the .bossline directory, the default bossline.yml, and the database schema. Safe to run repeatedly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			a, err := resolveApp()
			if err != nil {
				return err
			}
			defer a.Close()
			out := map[string]any{
				"workspace": workspace,
				"config":    config.Path(workspace),
				"database":  db.Path(workspace),
				"api_base":  a.Config.APIBase,
			}
			if viper.GetBool("json") {
				return printJSON(out)
			}
			fmt.Printf("workspace ready: %s\n", workspace)
			fmt.Printf("config:   %s\n", config.Path(workspace))
			fmt.Printf("database: %s\n", db.Path(workspace))
			fmt.Printf("api base: %s\n", a.Config.APIBase)
			return nil
		},
	}
	return cmd
}

func ownersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owners",
		Short: "List owner agents registered with the boss",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				owners, err := a.Session.RefreshOwners(cmd.Context())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"owners": owners,
						"status": a.Session.Status(),
					})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Owner"})
				for i, o := range owners {
					tw.AppendRow(table.Row{i + 1, o})
				}
				tw.Render()
				fmt.Printf("connection: %s\n", a.Session.Status())
				return nil
			})
		},
	}
	return cmd
}

func askCmd() *cobra.Command {
	var intentFlag string
	var flagCriteria []string
	var noSaved bool
	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Submit a question and render the synthesized answer",
		Long: `Submit a question to the boss. Acceptance criteria come from the saved
set plus any --criterion flags, deduplicated in insertion order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				question := strings.TrimSpace(strings.Join(args, " "))

				intent := a.Config.Intent()
				if intentFlag != "" {
					parsed, err := domain.ParseIntent(intentFlag)
					if err != nil {
						return err
					}
					intent = parsed
				}

				var merged []string
				if !noSaved {
					saved, err := a.Store.ListCriteria(cmd.Context())
					if err != nil {
						return err
					}
					merged = criteria.Union(nil, saved)
				}
				merged = criteria.Union(merged, flagCriteria)

				answer, err := a.Session.Ask(cmd.Context(), session.AskOptions{
					Question: question,
					Intent:   intent,
					Criteria: merged,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(answer)
				}
				renderAnswer(answer)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&intentFlag, "intent", "", "intent: design | impl_plan | risk | qa (default from config)")
	cmd.Flags().StringArrayVar(&flagCriteria, "criterion", []string{}, "acceptance criterion (repeatable)")
	cmd.Flags().BoolVar(&noSaved, "no-saved-criteria", false, "ignore the saved criteria set")
	return cmd
}

func criteriaCmd() *cobra.Command {
	crit := &cobra.Command{
		Use:   "criteria",
		Short: "Manage the saved acceptance criteria set",
		Long:  "The saved set is deduplicated and keeps first-insertion order. Positions shown here are 1-based.",
	}
	crit.AddCommand(criteriaListCmd())
	crit.AddCommand(criteriaAddCmd())
	crit.AddCommand(criteriaRemoveCmd())
	crit.AddCommand(criteriaClearCmd())
	return crit
}

func criteriaListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved criteria",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				items, err := a.Store.ListCriteria(cmd.Context())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Criterion"})
				for i, c := range items {
					tw.AppendRow(table.Row{i + 1, c})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func criteriaAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a criterion (duplicates and blanks are no-ops)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				added, err := a.Store.AddCriterion(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"added": added})
				}
				if added {
					fmt.Println("added")
				} else {
					fmt.Println("unchanged")
				}
				return nil
			})
		},
	}
	return cmd
}

func criteriaRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <position>",
		Short: "Remove the criterion at a 1-based position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("position must be a number, got %q", args[0])
			}
			return withApp(func(a *app.App) error {
				removed, err := a.Store.RemoveCriterionAt(cmd.Context(), pos-1)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"removed": removed})
				}
				if removed {
					fmt.Println("removed")
				} else {
					fmt.Printf("no criterion at position %d\n", pos)
				}
				return nil
			})
		},
	}
	return cmd
}

func criteriaClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all saved criteria",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				return a.Store.ClearCriteria(cmd.Context())
			})
		},
	}
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the ask journal, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				records, err := a.Store.ListAsks(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(records)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Created", "Status", "Intent", "Ms", "Question"})
				for _, r := range records {
					tw.AppendRow(table.Row{r.ID, r.CreatedAt, r.Status, r.Intent, r.DurationMS, truncate(r.Question, 60)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries (0 for all)")
	cmd.AddCommand(historyShowCmd())
	return cmd
}

func historyShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				rec, err := a.Store.GetAsk(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(rec)
			})
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show workspace, connection, and journal state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				ctx := cmd.Context()
				connection := string(domain.StatusIdle)
				if v, err := a.Store.GetState(ctx, history.StateConnectionStatus); err == nil {
					connection = v
				} else if !errors.Is(err, history.ErrNotFound) {
					return err
				}
				lastChecked := ""
				if v, err := a.Store.GetState(ctx, history.StateLastCheckedAt); err == nil {
					lastChecked = v
				} else if !errors.Is(err, history.ErrNotFound) {
					return err
				}
				saved, err := a.Store.ListCriteria(ctx)
				if err != nil {
					return err
				}
				counts, err := a.Store.CountAsks(ctx)
				if err != nil {
					return err
				}
				out := map[string]any{
					"workspace":       a.Workspace,
					"api_base":        a.Session.Client.APIBase,
					"connection":      connection,
					"last_checked_at": lastChecked,
					"criteria_count":  len(saved),
					"ask_counts":      counts,
				}
				return printJSONOrTable(out)
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect and update bossline.yml",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configSetCmd())
	cfg.AddCommand(configPathCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(map[string]any{
				"api_base":        cfg.APIBase,
				"timeout_seconds": cfg.TimeoutSeconds,
				"default_intent":  cfg.DefaultIntent,
				"history_keep":    cfg.HistoryKeep,
			})
		},
	}
	return cmd
}

func configSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Update one config key and save",
		Long:  "Keys: api_base, timeout_seconds, default_intent, history_keep. The file is validated before it is written.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			key, value := args[0], args[1]
			switch key {
			case "api_base":
				cfg.APIBase = value
			case "timeout_seconds":
				n, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("timeout_seconds must be a number, got %q", value)
				}
				cfg.TimeoutSeconds = n
			case "default_intent":
				if _, err := domain.ParseIntent(value); err != nil {
					return err
				}
				cfg.DefaultIntent = value
			case "history_keep":
				n, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("history_keep must be a number, got %q", value)
				}
				cfg.HistoryKeep = n
			default:
				return fmt.Errorf("unknown config key %q", key)
			}
			if err := cfg.Save(workspace); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{key: value, "saved": true})
			}
			fmt.Printf("%s = %s\n", key, value)
			return nil
		},
	}
	return cmd
}

func configPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(config.Path(viper.GetString("workspace")))
			return nil
		},
	}
	return cmd
}

func selftestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run the client self-tests against in-memory transports",
		Long:  "Every scenario runs against a deterministic transport double; nothing reaches the network.",
		RunE: func(cmd *cobra.Command, args []string) error {
			results := selftest.Run(cmd.Context())
			if viper.GetBool("json") {
				if err := printJSON(results); err != nil {
					return err
				}
			} else {
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Scenario", "Result", "Detail"})
				for _, r := range results {
					verdict := "pass"
					if !r.Pass {
						verdict = "FAIL"
					}
					tw.AppendRow(table.Row{r.Name, verdict, r.Detail})
				}
				tw.Render()
			}
			if selftest.Failed(results) {
				return fmt.Errorf("selftest failed")
			}
			return nil
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local stub boss backend",
		Long:  "Serves the fixed /owners and /ask contract with canned owner material. No orchestration logic.",
		RunE: func(cmd *cobra.Command, args []string) error {
			handler, err := stubserver.New(stubserver.Config{})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			fmt.Printf("Serving stub boss on http://%s (OpenAPI at /openapi.json)\n", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	return cmd
}

// --- helpers ---

func resolveApp() (*app.App, error) {
	return app.Resolve(app.Options{
		Workspace: viper.GetString("workspace"),
		APIBase:   viper.GetString("api-base"),
	})
}

func withApp(fn func(a *app.App) error) error {
	a, err := resolveApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func renderAnswer(answer domain.SynthesizedAnswer) {
	fmt.Printf("task: %s\n", answer.TaskID)
	fmt.Printf("summary: %s\n", answer.Summary)
	fmt.Printf("coverage: %s\n", strings.Join(answer.MergedCoverage, ", "))
	if len(answer.Gaps) > 0 {
		fmt.Println("gaps:")
		for _, g := range answer.Gaps {
			fmt.Printf("  - %s\n", g)
		}
	}

	owners := make([]string, 0, len(answer.ByOwner))
	for name := range answer.ByOwner {
		owners = append(owners, name)
	}
	sort.Strings(owners)
	for _, name := range owners {
		owner := answer.ByOwner[name]
		fmt.Printf("\n%s (confidence %.2f, coverage %s)\n",
			name, owner.Confidence, strings.Join(owner.Coverage, ", "))
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Area", "Summary", "Details"})
		for _, f := range owner.Findings {
			details := ""
			if len(f.Details) > 0 {
				b, _ := json.Marshal(f.Details)
				details = truncate(string(b), 80)
			}
			tw.AppendRow(table.Row{f.Area, f.Summary, details})
		}
		tw.Render()
		for _, g := range owner.Gaps {
			fmt.Printf("  gap: %s\n", g)
		}
		for _, na := range owner.NextActions {
			b, _ := json.Marshal(na)
			fmt.Printf("  next: %s\n", string(b))
		}
	}
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

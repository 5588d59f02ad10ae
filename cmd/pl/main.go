package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"payline/internal/app"
	"payline/internal/config"
	"payline/internal/db"
	"payline/internal/domain"
	"payline/internal/engine"
	"payline/internal/repo"
	"payline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pl",
	Short: "Payline CLI",
	Long: `Payline tracks treasury payments from entry to completion.
- Workspace: the .payline directory holding the SQLite database; payline.yml beside it holds the rules.
- Payments: validated entries keyed by reference (XXX-YYYY-NNNN) that move PENDING -> VALIDATED -> APPROVED -> PROCESSING -> COMPLETED, with REJECTED and FAILED exits.
- Sources: imported bank statement and CNP clearing exports used to verify payments.
- Exceptions: the ledger of verification problems that stay Open until someone resolves them.
- Tasks: review work items that owners submit and reviewers accept or return.
- Audit log: the trail of everything, view with 'pl audit tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PAYLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user", "local-user", "acting user")
	rootCmd.PersistentFlags().Bool("force", false, "force operation (admin)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
}

func registerCommands() {
	rootCmd.AddCommand(paymentCmd())
	rootCmd.AddCommand(sourceCmd())
	rootCmd.AddCommand(exceptionCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func paymentCmd() *cobra.Command {
	pay := &cobra.Command{Use: "payment", Short: "Manage payments"}
	pay.AddCommand(paymentAddCmd())
	pay.AddCommand(paymentListCmd())
	pay.AddCommand(paymentShowCmd())
	pay.AddCommand(paymentVerifyCmd())
	pay.AddCommand(paymentStatusCmd())
	pay.AddCommand(paymentHistoryCmd())
	pay.AddCommand(paymentSummaryCmd())
	pay.AddCommand(paymentRefreshCmd())
	return pay
}

func paymentAddCmd() *cobra.Command {
	var company, reference, amount, date string
	var benName, benAccount, benBank string
	var cnpApproved bool
	var overrideReason string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a payment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreatePayment(ctx, engine.PaymentCreateOptions{
					Payment: domain.Payment{
						Reference: reference,
						Company:   company,
						Beneficiary: domain.Beneficiary{
							Name:    benName,
							Account: benAccount,
							Bank:    benBank,
						},
						Amount: amount,
						Date:   date,
					},
					Actor:          viper.GetString("user"),
					CNPApproved:    cnpApproved,
					OverrideReason: overrideReason,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "paying company")
	cmd.Flags().StringVar(&reference, "reference", "", "payment reference (XXX-YYYY-NNNN)")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in SAR")
	cmd.Flags().StringVar(&date, "date", "", "payment date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&benName, "beneficiary-name", "", "beneficiary name")
	cmd.Flags().StringVar(&benAccount, "beneficiary-account", "", "beneficiary IBAN")
	cmd.Flags().StringVar(&benBank, "beneficiary-bank", "", "beneficiary bank")
	cmd.Flags().BoolVar(&cnpApproved, "cnp-approved", false, "approve an old payment")
	cmd.Flags().StringVar(&overrideReason, "override-reason", "", "reason for the CNP approval")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("reference")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func paymentListCmd() *cobra.Command {
	var company, status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List payments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListPayments(ctx, paymentFilters(company, status, limit))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Reference", "Company", "Beneficiary", "Amount", "Date", "Status"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.Reference, p.Company, p.Beneficiary.Name, p.Amount, p.Date, p.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "filter by company")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func paymentShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <reference>",
		Short: "Show a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetPayment(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func paymentVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <reference>",
		Short: "Verify a payment against imported sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.Verify(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	return cmd
}

func paymentStatusCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "status <reference> <status>",
		Short: "Update payment status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				user := viper.GetString("user")
				force := viper.GetBool("force")
				if force && !e.Config.IsAdmin(user) {
					return fmt.Errorf("--force requires an admin user")
				}
				if err := e.UpdateStatus(ctx, args[0], args[1], reason, user, force); err != nil {
					return err
				}
				entry, err := e.GetStatus(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason for the change")
	return cmd
}

func paymentHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <reference>",
		Short: "Show payment status history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.StatusHistory(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Time", "From", "To", "User", "Reason"})
				for _, s := range items {
					from := ""
					if s.PreviousStatus != nil {
						from = *s.PreviousStatus
					}
					tw.AppendRow(table.Row{s.Timestamp, from, s.Status, s.User, s.Reason})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func paymentSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Payment counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				counts, err := e.PaymentsByStatus(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(counts)
			})
		},
	}
	return cmd
}

func paymentRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Initialize payments missing a status entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				summary, err := e.RefreshStatuses(ctx, viper.GetString("user"))
				if err != nil {
					return err
				}
				return printJSONOrTable(summary)
			})
		},
	}
	return cmd
}

func sourceCmd() *cobra.Command {
	src := &cobra.Command{Use: "source", Short: "Manage verification sources"}
	src.AddCommand(sourceImportCmd())
	src.AddCommand(sourceListCmd())
	return src
}

func sourceImportCmd() *cobra.Command {
	var kind, company, file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a bank statement or CNP export (CSV)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				n, err := e.ImportSourceCSV(ctx, kind, company, f)
				if err != nil {
					return err
				}
				fmt.Printf("Imported %d %s records for %s\n", n, kind, strings.ToUpper(company))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "source kind (bank_statement or cnp)")
	cmd.Flags().StringVar(&company, "company", "", "company the export belongs to")
	cmd.Flags().StringVar(&file, "file", "", "path to the CSV file")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func sourceListCmd() *cobra.Command {
	var kind, company string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List imported source records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListSourceRecords(ctx, sourceFilters(kind, company, limit))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Kind", "Company", "Reference", "Amount", "Date", "Status"})
				for _, rec := range items {
					tw.AppendRow(table.Row{rec.Kind, rec.Company, rec.Reference, rec.Amount, rec.Date, rec.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind")
	cmd.Flags().StringVar(&company, "company", "", "filter by company")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func exceptionCmd() *cobra.Command {
	exc := &cobra.Command{Use: "exception", Short: "Manage the exception ledger"}
	exc.AddCommand(exceptionListCmd())
	exc.AddCommand(exceptionResolveCmd())
	return exc
}

func exceptionListCmd() *cobra.Command {
	var reference, status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List exception records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListExceptions(ctx, exceptionFilters(reference, status, limit))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Reference", "Type", "Status", "Description", "Resolution"})
				for _, rec := range items {
					tw.AppendRow(table.Row{rec.Reference, rec.Type, rec.Status, rec.Description, rec.Resolution})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "filter by payment reference")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (Open, Resolved)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func exceptionResolveCmd() *cobra.Command {
	var resolution string
	cmd := &cobra.Command{
		Use:   "resolve <reference>",
		Short: "Resolve all open exceptions for a reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				resolved, err := e.ResolveException(ctx, args[0], resolution, viper.GetString("user"))
				if err != nil {
					return err
				}
				if !resolved {
					fmt.Printf("No open exceptions for %s\n", args[0])
					return nil
				}
				fmt.Printf("Resolved exceptions for %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&resolution, "resolution", "", "how it was resolved")
	_ = cmd.MarkFlagRequired("resolution")
	return cmd
}

func taskCmd() *cobra.Command {
	tsk := &cobra.Command{Use: "task", Short: "Manage review tasks"}
	tsk.AddCommand(taskAddCmd())
	tsk.AddCommand(taskListCmd())
	tsk.AddCommand(taskShowCmd())
	tsk.AddCommand(taskStatusCmd())
	tsk.AddCommand(taskReviewerCmd())
	tsk.AddCommand(taskFeedbackCmd())
	tsk.AddCommand(taskArchiveCmd())
	return tsk
}

func taskAddCmd() *cobra.Command {
	var description, owner, deadline, priority string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a review task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
					Description: description,
					Owner:       owner,
					Deadline:    deadline,
					Priority:    priority,
					Actor:       viper.GetString("user"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "what needs doing")
	cmd.Flags().StringVar(&owner, "owner", "", "task owner")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline (YYYY-MM-DD)")
	cmd.Flags().StringVar(&priority, "priority", "", "Low, Medium or High")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("deadline")
	return cmd
}

func taskListCmd() *cobra.Command {
	var owner, reviewer, status string
	var archived bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListTasks(ctx, taskFilters(owner, reviewer, status, archived, limit))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Description", "Owner", "Reviewer", "Deadline", "Priority", "Status"})
				for _, t := range items {
					reviewerName := ""
					if t.Reviewer != nil {
						reviewerName = *t.Reviewer
					}
					tw.AppendRow(table.Row{t.ID, t.Description, t.Owner, reviewerName, t.Deadline, t.Priority, t.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "filter by owner")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "filter by reviewer")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().BoolVar(&archived, "archived", false, "show archived tasks")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its feedback trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskStatusCmd() *cobra.Command {
	var feedback string
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a task through the review lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTaskStatus(ctx, args[0], args[1], viper.GetString("user"), feedback)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&feedback, "feedback", "", "feedback to attach")
	return cmd
}

func taskReviewerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviewer <id> <reviewer>",
		Short: "Assign the task reviewer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.AssignReviewer(ctx, args[0], args[1], viper.GetString("user"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback <id> <message>",
		Short: "Add feedback to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.AddFeedback(ctx, args[0], viper.GetString("user"), args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.ArchiveTask(ctx, args[0], viper.GetString("user"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func auditCmd() *cobra.Command {
	aud := &cobra.Command{Use: "audit", Short: "Inspect the audit log"}
	aud.AddCommand(auditTailCmd())
	return aud
}

func auditTailCmd() *cobra.Command {
	var n int
	var reference, action string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAuditEntries(ctx, auditFilters(reference, action, n))
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	cmd.Flags().StringVar(&reference, "reference", "", "filter by reference")
	cmd.Flags().StringVar(&action, "action", "", "filter by action")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default payline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var refreshEvery time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, e, err := app.Open(workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			secret := os.Getenv("PAYLINE_JWT_SECRET")
			if secret == "" {
				secret = e.Config.Auth.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("PAYLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret},
			})
			if err != nil {
				return err
			}
			if refreshEvery > 0 {
				go runStatusRefresher(cmd.Context(), e, refreshEvery)
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Payline API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().DurationVar(&refreshEvery, "refresh-every", time.Hour, "how often to initialize missing statuses (0 disables)")
	return cmd
}

func runStatusRefresher(ctx context.Context, e engine.Engine, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if summary, err := e.RefreshStatuses(ctx, "system"); err != nil {
				fmt.Printf("status refresh: %v\n", err)
			} else if summary.Updated > 0 || summary.Errors > 0 {
				fmt.Printf("status refresh: %d updated, %d errors\n", summary.Updated, summary.Errors)
			}
		}
	}
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	conn, e, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
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

func paymentFilters(company, status string, limit int) repo.PaymentFilters {
	return repo.PaymentFilters{
		Company: strings.ToUpper(strings.TrimSpace(company)),
		Status:  status,
		Limit:   limit,
	}
}

func sourceFilters(kind, company string, limit int) repo.SourceFilters {
	return repo.SourceFilters{
		Kind:    kind,
		Company: strings.ToUpper(strings.TrimSpace(company)),
		Limit:   limit,
	}
}

func exceptionFilters(reference, status string, limit int) repo.ExceptionFilters {
	return repo.ExceptionFilters{Reference: reference, Status: status, Limit: limit}
}

func taskFilters(owner, reviewer, status string, archived bool, limit int) repo.TaskFilters {
	return repo.TaskFilters{
		Owner:    owner,
		Reviewer: reviewer,
		Status:   status,
		Archived: &archived,
		Limit:    limit,
	}
}

func auditFilters(reference, action string, limit int) repo.AuditFilters {
	return repo.AuditFilters{Reference: reference, Action: action, Limit: limit}
}

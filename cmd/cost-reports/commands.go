package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/app"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/common"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/repository"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/server"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/utils"
)

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion pass",
	Long: `Run one ingestion pass: list PDFs, extract reports from new or updated
files, then record every attempted file in the control state.

Exits with status 1 only when the source could not be listed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		res := a.Run(cmd.Context())

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "Run %s: %s\n", res.RunID, res.Status)
			fmt.Fprintf(out, "  processed: %d\n", len(res.ProcessedFiles))
			for _, r := range res.NewReports {
				fmt.Fprintf(out, "    %s  %s %s  %s\n", r.ID, r.Currency, r.TotalCost.StringFixed(2), r.SourcePDF)
			}
			if len(res.Errors) > 0 {
				fmt.Fprintf(out, "  errors: %d\n", len(res.Errors))
				for _, e := range res.Errors {
					fmt.Fprintf(out, "    %s\n", e)
				}
			}
		}
		if !res.Success {
			return errRunFailed
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("json", false, "print the run result as JSON")
	rootCmd.AddCommand(runCmd)
}

// --- check ---

var checkCmd = &cobra.Command{
	Use:       "check [drive|llm|db|all]",
	Short:     "Check connectivity to the file source, model API and catalog",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"drive", "llm", "db", "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "all"
		if len(args) == 1 {
			target = args[0]
		}
		var names []string
		switch target {
		case "drive", "source":
			names = []string{app.CheckSource}
		case "llm":
			names = []string{app.CheckLLM}
		case "db":
			names = []string{app.CheckDatabase}
		case "all":
			names = []string{app.CheckSource, app.CheckLLM, app.CheckDatabase}
		default:
			return fmt.Errorf("unknown check target %q", target)
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.NewForCheck(cmd.Context(), cfg, logger, names...)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		failed := 0
		for _, r := range a.Check(cmd.Context(), names...) {
			if r.OK() {
				printSuccess("%s ok (%s)", r.Name, r.Elapsed.Round(time.Millisecond))
				continue
			}
			failed++
			printError("%s: %v", r.Name, r.Err)
		}
		if failed > 0 {
			return fmt.Errorf("%d check(s) failed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// --- reset ---

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete generated reports and forget processed files",
	Long: `Delete every report document and rendered page, clear the catalog,
reset the control state and write an empty index. The next run
reprocesses every PDF in the source.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("reset deletes all generated reports; pass --yes to confirm")
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.NewOffline(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		sum, err := a.Orchestrator.Reset(cmd.Context())
		if err != nil {
			return err
		}
		printSuccess("reset complete")
		printStatus("reports", "%d", sum.Reports)
		printStatus("pages", "%d", sum.Pages)
		printStatus("catalog rows", "%d", sum.Catalog)
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("yes", false, "confirm deletion")
	rootCmd.AddCommand(resetCmd)
}

// --- reindex ---

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the catalog and index page from stored reports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.NewOffline(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		n, err := a.Orchestrator.Reindex(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Orchestrator.RefreshIndex(cmd.Context()); err != nil {
			return err
		}
		printSuccess("indexed %d report(s)", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogued reports, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := listFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.NewOffline(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		rows, err := a.Catalog.List(cmd.Context(), f)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			printWarning("no reports")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tGENERATED\tTOTAL\tITEMS\tNAME\tSOURCE")
		for _, row := range rows {
			r := row.Report
			fmt.Fprintf(tw, "%s\t%s\t%s %s\t%d\t%s\t%s\n",
				r.ID,
				r.GeneratedAt.UTC().Format("2006-01-02 15:04"),
				r.Currency, r.TotalCost.StringFixed(2),
				len(r.Items),
				utils.Truncate(r.Name, 40),
				r.SourcePDF,
			)
		}
		return tw.Flush()
	},
}

func init() {
	addFilterFlags(listCmd)
	rootCmd.AddCommand(listCmd)
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write catalogued reports to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return fmt.Errorf("--out is required")
		}
		f, err := listFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.NewOffline(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		buf, err := a.Exporter.ExportReportsXLSX(cmd.Context(), f)
		if err != nil {
			return err
		}
		if err := utils.WriteFileAtomic(out, buf); err != nil {
			return err
		}
		printSuccess("wrote %s (%d bytes)", out, len(buf))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "cost-reports.xlsx", "output file")
	addFilterFlags(exportCmd)
	rootCmd.AddCommand(exportCmd)
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("currency", "", "only reports in this currency")
	cmd.Flags().String("since", "", "only reports generated on or after this date (YYYY-MM-DD)")
	cmd.Flags().Int("limit", 0, "maximum number of reports (0 = all)")
}

func listFilterFromFlags(cmd *cobra.Command) (repository.ListFilter, error) {
	currency, _ := cmd.Flags().GetString("currency")
	since, _ := cmd.Flags().GetString("since")
	limit, _ := cmd.Flags().GetInt("limit")

	f := repository.ListFilter{Currency: currency, Limit: limit}
	if since != "" {
		t, err := time.Parse("2006-01-02", since)
		if err != nil {
			return f, common.NewAppError("INVALID_INPUT", "--since must be YYYY-MM-DD", common.ErrInvalidInput)
		}
		f.Since = &t
	}
	return f, nil
}

// --- health ---

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query the daemon's gRPC health service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		service, _ := cmd.Flags().GetString("service")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("dial %s: %w", addr, err)
		}
		defer func() { _ = conn.Close() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return fmt.Errorf("health check: %w", err)
		}

		b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("%s is %s", service, resp.GetStatus())
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().String("addr", "localhost:8080", "daemon gRPC address")
	healthCmd.Flags().String("service", server.IngestionService, "health service name (empty for the process)")
	healthCmd.Flags().Duration("timeout", 3*time.Second, "request timeout")
	rootCmd.AddCommand(healthCmd)
}

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LeventeLantos/sms-campaign/internal/api"
	"github.com/LeventeLantos/sms-campaign/internal/campaign"
	"github.com/LeventeLantos/sms-campaign/internal/config"
	"github.com/LeventeLantos/sms-campaign/internal/scheduler"
	"github.com/LeventeLantos/sms-campaign/internal/segment"
	"github.com/LeventeLantos/sms-campaign/internal/service"
	"github.com/LeventeLantos/sms-campaign/internal/sheet"
)

const banner = `
  SMS Campaign Manager
  ====================
`

func cmdRun(ctx context.Context, configPath string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	yes := fs.Bool("yes", false, "skip confirmation prompts")
	dryRun := fs.Bool("dry-run", false, "simulate sending")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dryRun {
		_ = os.Setenv("DRY_RUN", "true")
	}

	fmt.Fprint(stdout, banner)
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	printConfig(stdout, cfg)

	a, err := newApp(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	files, err := a.runner.CheckFiles()
	printFiles(stdout, files)
	if err != nil {
		return err
	}
	if err := requireInputs(files); err != nil {
		return fmt.Errorf("%w (data folder: %s)", err, cfg.Paths.DataFolder)
	}

	if !*yes {
		in := bufio.NewReader(stdin)
		fresh := files["customers_new"]
		fmt.Fprintf(stdout, "Customer list last modified: %s\n", fresh.Modified.Format("2006-01-02 15:04:05"))
		if !confirm(in, stdout, "Is this the latest customer list?", true) {
			return errCancelled
		}
		printMode(stdout, cfg)
		if !confirm(in, stdout, "Do you want to proceed with the campaign execution?", false) {
			return errCancelled
		}
	}

	fmt.Fprintln(stdout, "\nStarting campaign execution...")
	sum, err := a.runner.Run(ctx)
	if sum != nil {
		printSummary(stdout, sum)
	}
	return err
}

func cmdCheck(ctx context.Context, configPath string, stdout io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	printConfig(stdout, cfg)

	a, err := newApp(ctx, cfg, io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	files, err := a.runner.CheckFiles()
	printFiles(stdout, files)
	if err != nil {
		return err
	}
	return requireInputs(files)
}

func cmdSyncOptOuts(ctx context.Context, configPath string, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.syncer.Sync(ctx)
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Fprintln(stdout, "Opt-out sync skipped.")
		return nil
	}
	fmt.Fprintf(stdout, "Replies checked: %d\nOpt-outs: %d\nOpt-ins: %d\nNet change in opted-out customers: %+d\nCustomer list updated: %t\n",
		res.Messages, res.OptOuts, res.OptIns, res.NetOptedOut, res.Saved)
	return nil
}

func cmdAnalyze(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	message := fs.String("message", "", "message text to analyze")
	if err := fs.Parse(args); err != nil {
		return err
	}
	text := *message
	if text == "" {
		text = strings.Join(fs.Args(), " ")
	}
	if text == "" {
		return errors.New("analyze: -message is required")
	}

	printAnalysis(stdout, segment.Analyze(text))
	return nil
}

func cmdResetCampaigns(configPath string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("reset-campaigns", flag.ContinueOnError)
	fs.SetOutput(stderr)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	path := cfg.CampaignsPath()
	if !sheet.Exists(path) {
		return fmt.Errorf("%w: %s", campaign.ErrNoCampaignFile, path)
	}
	t, err := sheet.Read(path)
	if err != nil {
		return err
	}

	if !*yes && !confirm(bufio.NewReader(stdin), stdout, fmt.Sprintf("Clear processed markers on %d campaigns?", t.Len()), false) {
		return errCancelled
	}

	n := campaign.Reset(t, cfg.Columns.Campaign)
	if err := sheet.Write(path, t); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Reset %d of %d campaigns.\n", n, t.Len())
	return nil
}

func cmdServe(ctx context.Context, configPath string, stdout io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := scheduler.New(cfg.Scheduler.Interval, func(ctx context.Context) error {
		if _, err := a.syncer.Sync(ctx); err != nil {
			a.logger.Warn("opt-out sync failed, continuing with campaigns", "err", err)
		}
		_, err := a.runner.Run(ctx)
		return err
	}, a.logger.Logger)
	if err != nil {
		return err
	}

	h := api.NewHandler(sched, a.runner, a.sendLog)
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(a.logger.Logger, api.Router(h, a.registry)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server listening", "addr", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}

func requireInputs(files map[string]sheet.FileInfo) error {
	var errs []error
	if !files["customers_new"].Exists {
		errs = append(errs, errors.New("required file not found: customers_list_new"))
	}
	if !files["campaigns"].Exists {
		errs = append(errs, errors.New("required file not found: campaigns configuration"))
	}
	return errors.Join(errs...)
}

func confirm(in *bufio.Reader, out io.Writer, question string, def bool) bool {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	fmt.Fprintf(out, "%s %s ", question, hint)

	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return def
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}

func printConfig(w io.Writer, cfg *config.Config) {
	phone := cfg.Twilio.PhoneNumber
	if phone == "" {
		phone = "Not configured"
	}
	mode := "No"
	if cfg.SMS.DryRun {
		mode = "Yes"
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Configuration:")
	fmt.Fprintf(tw, "  Data Folder\t%s\n", cfg.Paths.DataFolder)
	fmt.Fprintf(tw, "  Logs Folder\t%s\n", cfg.Paths.LogsFolder)
	fmt.Fprintf(tw, "  Twilio Phone\t%s\n", phone)
	fmt.Fprintf(tw, "  Dry Run Mode\t%s\n", mode)
	fmt.Fprintf(tw, "  SMS Rate Limit\t%s\n", cfg.SMS.RateLimitDelay)
	if n := len(cfg.SMS.TestPhoneNumbers); n > 0 {
		fmt.Fprintf(tw, "  Test Phone Numbers\t%d configured\n", n)
	}
	_ = tw.Flush()

	if len(cfg.SMS.TestPhoneNumbers) > 0 {
		fmt.Fprintln(w, "\nTEST MODE ACTIVE. Only these numbers will receive SMS:")
		for _, n := range cfg.SMS.TestPhoneNumbers {
			fmt.Fprintf(w, "  - %s\n", n)
		}
	}
	fmt.Fprintln(w)
}

func printFiles(w io.Writer, files map[string]sheet.FileInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tNAME\tSTATUS\tROWS\tSIZE\tMODIFIED")
	for _, key := range []string{"customers_old", "customers_new", "campaigns"} {
		fi := files[key]
		if !fi.Exists {
			fmt.Fprintf(tw, "%s\t%s\tmissing\t-\t-\t-\n", key, fi.Name)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\tfound\t%d\t%.1f KB\t%s\n",
			key, fi.Name, fi.Rows, float64(fi.Size)/1024, fi.Modified.Format("2006-01-02 15:04:05"))
	}
	_ = tw.Flush()
	fmt.Fprintln(w)
}

func printMode(w io.Writer, cfg *config.Config) {
	switch {
	case cfg.SMS.DryRun:
		fmt.Fprintln(w, "\nDRY RUN MODE: SMS messages will NOT be sent. Set DRY_RUN=false to send real messages.")
	case len(cfg.SMS.TestPhoneNumbers) > 0:
		fmt.Fprintf(w, "\nLIVE MODE: real SMS will be sent, restricted to %d test numbers.\n", len(cfg.SMS.TestPhoneNumbers))
	default:
		fmt.Fprintln(w, "\nLIVE MODE: real SMS will be sent to ALL eligible customers. Review the campaign configuration first.")
	}
}

func printSummary(w io.Writer, sum *service.RunSummary) {
	fmt.Fprintf(w, "\nRun %s\n", sum.RunID)
	if sum.DryRun {
		fmt.Fprintln(w, "(dry run)")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ROW\tTYPE\tELIGIBLE\tSENT\tFAILED\tSKIPPED\tCOST\tSTATUS\t")
	for _, c := range sum.Campaigns {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%s\t%s\t\n",
			c.Row+2, c.Label, c.Eligible, c.Sent, c.Failed, c.Skipped, c.Report.TotalCostFormatted(), c.Status)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nCampaigns processed: %d\nTotal SMS sent: %d\nTotal failed: %d\nSuccess rate: %.1f%%\nEstimated cost: $%.2f\nDuration: %s\n",
		sum.CampaignsProcessed, sum.TotalSent, sum.TotalFailed,
		sum.Sender.SuccessRate, sum.Sender.EstimatedCost, sum.Duration.Round(time.Second))
}

func printAnalysis(w io.Writer, a segment.Analysis) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Length\t%d\n", a.Length)
	fmt.Fprintf(tw, "Effective length\t%d\n", a.EffectiveLength)
	fmt.Fprintf(tw, "Encoding\t%s\n", a.Encoding)
	fmt.Fprintf(tw, "Segments\t%d\n", a.Segments)
	fmt.Fprintf(tw, "Cost per message\t%s\n", a.CostFormatted())
	fmt.Fprintf(tw, "Chars remaining\t%d\n", a.CharsRemaining)
	_ = tw.Flush()

	for _, warn := range a.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	for _, rec := range a.Recommendations {
		fmt.Fprintf(w, "tip: %s\n", rec)
	}
}

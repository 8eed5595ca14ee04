package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/LeventeLantos/sms-campaign/internal/config"
)

const usage = `usage: smscampaign [-config path] [-env path] <command> [flags]

commands:
  run              merge customer lists and send pending campaigns (default)
  check            show configuration and data file status
  sync-optouts     apply STOP/START replies to the customer list
  analyze          estimate segments and cost of a message
  reset-campaigns  clear processed markers on the campaign sheet
  serve            run campaigns on a schedule behind an admin API
`

// errCancelled means the operator declined a confirmation prompt.
var errCancelled = errors.New("cancelled by user")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("smscampaign", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", config.DefaultPath, "path to config.yml")
	envPath := fs.String("env", ".env", "path to .env file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_ = godotenv.Load(*envPath)

	cmd, rest := "run", fs.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = cmdRun(ctx, *configPath, rest, stdin, stdout, stderr)
	case "check":
		err = cmdCheck(ctx, *configPath, stdout)
	case "sync-optouts":
		err = cmdSyncOptOuts(ctx, *configPath, stdout, stderr)
	case "analyze":
		err = cmdAnalyze(rest, stdout, stderr)
	case "reset-campaigns":
		err = cmdResetCampaigns(*configPath, rest, stdin, stdout, stderr)
	case "serve":
		err = cmdServe(ctx, *configPath, stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errCancelled):
		fmt.Fprintln(stdout, "Cancelled.")
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "Interrupted.")
		return 130
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}

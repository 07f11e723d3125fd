// Command frctl runs order reports, time-card exports and the allocation from a terminal.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/troopfundraiser/frclient/internal/allocation"
	"github.com/troopfundraiser/frclient/internal/app"
	"github.com/troopfundraiser/frclient/internal/orders"
	"github.com/troopfundraiser/frclient/internal/reports"
	"github.com/troopfundraiser/frclient/pkg/auth/session"
	"github.com/troopfundraiser/frclient/pkg/config"
	"github.com/troopfundraiser/frclient/pkg/enums"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/logger"
	"github.com/troopfundraiser/frclient/pkg/money"
)

type options struct {
	cmd          string
	sessionID    string
	owner        string
	view         string
	format       string
	out          string
	bank         string
	mulch        string
	deliveryID   string
	top          int
	accessToken  string
	idToken      string
	refreshToken string
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "frctl", Output: os.Stderr})

	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "orders", "command: login|logout|orders|report|timecards|leaderboard|allocation|release")
	flag.StringVar(&opts.sessionID, "session", os.Getenv("FR_SESSION"), "session id returned by -cmd=login")
	flag.StringVar(&opts.owner, "user", "", "order owner, or \"any\" for every owner (admins only)")
	flag.StringVar(&opts.view, "view", string(enums.ReportViewDefault), "report view for -cmd=report")
	flag.StringVar(&opts.format, "format", "csv", "output format: json|csv|xlsx")
	flag.StringVar(&opts.out, "out", "", "output file (default stdout)")
	flag.StringVar(&opts.bank, "bank", "", "bank deposited, for allocation and release")
	flag.StringVar(&opts.mulch, "mulch", "", "mulch cost, for allocation and release")
	flag.StringVar(&opts.deliveryID, "delivery", "", "delivery date id for -cmd=timecards")
	flag.IntVar(&opts.top, "top", 0, "leaderboard size, 0 for everyone")
	flag.StringVar(&opts.accessToken, "access-token", "", "access token for -cmd=login")
	flag.StringVar(&opts.idToken, "id-token", "", "id token for -cmd=login")
	flag.StringVar(&opts.refreshToken, "refresh-token", "", "refresh token for -cmd=login")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "frctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
		Output:      os.Stderr,
	})

	application, err := app.New(context.Background(), cfg, logg, nil)
	requireResource(logg, "services", err)
	defer application.Close()

	ctx := logg.WithField(context.Background(), "cmd", opts.cmd)
	if opts.cmd != "login" {
		if strings.TrimSpace(opts.sessionID) == "" {
			fmt.Fprintln(os.Stderr, "missing -session (or FR_SESSION)")
			os.Exit(2)
		}
		ctx = session.WithID(logg.WithSessionID(ctx, opts.sessionID), opts.sessionID)
	}

	if err := run(ctx, application, opts); err != nil {
		if pkgerrors.IsInvalidSession(err) {
			fmt.Fprintln(os.Stderr, "session is no longer valid, sign in again with -cmd=login")
			os.Exit(3)
		}
		logg.Error(ctx, "command failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, opts options) error {
	switch opts.cmd {
	case "login":
		sess, err := a.Sessions.Create(ctx, session.Tokens{
			AccessToken:  opts.accessToken,
			IDToken:      opts.idToken,
			RefreshToken: opts.refreshToken,
		})
		if err != nil {
			return err
		}
		fmt.Println(sess.ID)
		return nil

	case "logout":
		return a.Sessions.Logout(ctx, opts.sessionID)

	case "orders":
		list, err := a.Reader.Query(ctx, orders.QueryFilter{OrderOwner: opts.owner})
		if err != nil {
			return err
		}
		return writeOutput(opts.out, func(w io.Writer) error { return writeJSON(w, list) })

	case "report":
		return runReport(ctx, a, opts)

	case "timecards":
		entries, err := a.TimeCards.Query(ctx, opts.deliveryID)
		if err != nil {
			return err
		}
		if opts.format == "json" {
			return writeOutput(opts.out, func(w io.Writer) error { return writeJSON(w, entries) })
		}
		fcfg, err := a.ConfigCache.Load(ctx, opts.sessionID)
		if err != nil {
			return err
		}
		return writeTable(opts, reports.TimeCardTable(entries, fcfg), reports.PlainDelimiter)

	case "leaderboard":
		board, err := a.Leaderboard.Get(ctx)
		if err != nil {
			return err
		}
		return writeOutput(opts.out, func(w io.Writer) error { return writeJSON(w, board.Top(opts.top)) })

	case "allocation", "release":
		amounts, err := parseAmounts(opts)
		if err != nil {
			return err
		}
		fcfg, err := a.ConfigCache.Load(ctx, opts.sessionID)
		if err != nil {
			return err
		}
		var report *allocation.Report
		if opts.cmd == "release" {
			identity, err := a.Sessions.Identity(ctx)
			if err != nil {
				return err
			}
			if !identity.IsAdmin {
				return pkgerrors.New(pkgerrors.CodeForbidden, "admin access required")
			}
			report, err = a.Allocation.Release(ctx, fcfg, amounts, identity.UserID)
			if err != nil {
				return err
			}
		} else {
			report, err = a.Allocation.Compute(ctx, fcfg, amounts)
			if err != nil {
				return err
			}
		}
		if opts.format == "json" {
			return writeOutput(opts.out, func(w io.Writer) error { return writeJSON(w, report) })
		}
		return writeTable(opts, report.Table(), reports.PlainDelimiter)
	}
	return fmt.Errorf("unknown command %q", opts.cmd)
}

func runReport(ctx context.Context, a *app.App, opts options) error {
	view, err := enums.ParseReportView(opts.view)
	if err != nil {
		return err
	}
	identity, err := a.Sessions.Identity(ctx)
	if err != nil {
		return err
	}
	fcfg, err := a.ConfigCache.Load(ctx, opts.sessionID)
	if err != nil {
		return err
	}
	list, err := a.Reader.Query(ctx, orders.QueryFilter{OrderOwner: opts.owner})
	if err != nil {
		return err
	}
	table, err := reports.Project(view, list, reports.Scope{
		ViewerID:     identity.UserID,
		IsAdmin:      identity.IsAdmin,
		SelectedUser: opts.owner,
	}, fcfg)
	if err != nil {
		return err
	}
	if opts.format == "json" {
		return writeOutput(opts.out, func(w io.Writer) error { return writeJSON(w, table) })
	}
	return writeTable(opts, table, reports.TableDelimiter)
}

func parseAmounts(opts options) (allocation.Amounts, error) {
	bank, err := money.Parse(opts.bank)
	if err != nil {
		return allocation.Amounts{}, fmt.Errorf("-bank: %w", err)
	}
	mulch, err := money.Parse(opts.mulch)
	if err != nil {
		return allocation.Amounts{}, fmt.Errorf("-mulch: %w", err)
	}
	return allocation.Amounts{BankDeposited: bank, MulchCost: mulch}, nil
}

func writeTable(opts options, t *reports.Table, delimiter rune) error {
	if opts.format == "xlsx" {
		if opts.out == "" {
			return fmt.Errorf("-out is required for xlsx")
		}
		return writeOutput(opts.out, func(w io.Writer) error { return reports.WriteXLSX(w, t, t.Title) })
	}
	return writeOutput(opts.out, func(w io.Writer) error { return reports.WriteCSV(w, t, delimiter) })
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func requireResource(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to initialize "+name, err)
	os.Exit(1)
}

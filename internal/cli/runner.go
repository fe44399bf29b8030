// Package cli maps command-line arguments to sentiment operations and
// reports the outcome to the user. It is the only place errors stop.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"crypto-sentiment/internal/domain"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

const Version = "1.0.0"

const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

const (
	cmdAnalyze = "analyze"
	cmdHistory = "history"
	cmdLast    = "last"
	cmdList    = "list"
	cmdDelete  = "delete"
	cmdHelp    = "help"
	cmdVersion = "version"
)

const usage = `Crypto Sentiment Analysis CLI

Usage:
  crypto-sentiment <command> [coin]

Commands:
  analyze <coin>   Analyze sentiment for a specific coin
  history <coin>   Get sentiment history for a specific coin
  last <coin>      Get last sentiment for a specific coin
  list             List all coins with sentiment history
  delete <coin>    Delete sentiment history for a specific coin
  version          Print the version
  help             Show this help`

// SentimentService is what the runner needs from service.SentimentService.
type SentimentService interface {
	AnalyzeSentiment(ctx context.Context, coin string) (*domain.SentimentRecord, error)
	GetSentimentHistory(ctx context.Context, coin string) ([]domain.SentimentRecord, error)
	GetLastSentiment(ctx context.Context, coin string) (*domain.SentimentRecord, error)
	ListAllSentiments(ctx context.Context) ([]string, error)
	DeleteSentimentHistory(ctx context.Context, coin string) (int64, error)
}

// Runner writes command output to out and failures to errOut.
type Runner struct {
	svc     SentimentService
	out     io.Writer
	errOut  io.Writer
	info    lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	muted   atomic.Bool
}

func NewRunner(svc SentimentService, out, errOut io.Writer) *Runner {
	renderer := lipgloss.NewRenderer(out)
	errRenderer := lipgloss.NewRenderer(errOut)
	return &Runner{
		svc:     svc,
		out:     out,
		errOut:  errOut,
		info:    renderer.NewStyle().Foreground(lipgloss.Color("4")),
		success: renderer.NewStyle().Foreground(lipgloss.Color("2")),
		failure: errRenderer.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// NeedsStore reports whether args name a command that touches the database.
func NeedsStore(args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case cmdAnalyze, cmdHistory, cmdLast, cmdList, cmdDelete:
		return true
	}
	return false
}

// Run executes one command and returns the process exit code.
func (r *Runner) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		r.emit(r.errOut, usage)
		return ExitUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case cmdHelp, "-h", "--help":
		r.println(usage)
		return ExitOK
	case cmdVersion, "-v", "--version":
		r.println(Version)
		return ExitOK
	case cmdList:
		return r.listAllSentiments(ctx)
	case cmdAnalyze, cmdHistory, cmdLast, cmdDelete:
		if len(rest) != 1 || strings.TrimSpace(rest[0]) == "" {
			r.errorf("error: %s requires exactly one <coin> argument", cmd)
			r.emit(r.errOut, usage)
			return ExitUsage
		}
		coin := rest[0]
		switch cmd {
		case cmdAnalyze:
			return r.analyzeSentiment(ctx, coin)
		case cmdHistory:
			return r.getSentimentHistory(ctx, coin)
		case cmdLast:
			return r.getLastSentiment(ctx, coin)
		default:
			return r.deleteSentimentHistory(ctx, coin)
		}
	default:
		r.errorf("error: unknown command %q", cmd)
		r.emit(r.errOut, usage)
		return ExitUsage
	}
}

func (r *Runner) analyzeSentiment(ctx context.Context, coin string) int {
	r.infof("Analyzing sentiment...")
	rec, err := r.svc.AnalyzeSentiment(ctx, coin)
	if err != nil {
		r.errorf("Sentiment analysis failed")
		r.errorf("Error: %v", err)
		return ExitError
	}
	r.successf("Sentiment analysis complete")
	// Model output can span lines; styling it would pad every line.
	r.emit(r.out, r.success.Render("Sentiment for "+rec.Coin+":"), rec.Sentiment)
	return ExitOK
}

func (r *Runner) getSentimentHistory(ctx context.Context, coin string) int {
	history, err := r.svc.GetSentimentHistory(ctx, coin)
	if err != nil {
		r.errorf("Error fetching sentiment history: %v", err)
		return ExitError
	}
	if len(history) == 0 {
		r.infof("No sentiment history found for %s", coin)
		return ExitOK
	}
	r.infof("Sentiment history for %s:", coin)
	for _, rec := range history {
		r.println(formatRecord(rec))
	}
	return ExitOK
}

func (r *Runner) getLastSentiment(ctx context.Context, coin string) int {
	rec, err := r.svc.GetLastSentiment(ctx, coin)
	if err != nil {
		r.errorf("Error fetching last sentiment: %v", err)
		return ExitError
	}
	if rec == nil {
		r.infof("No sentiment history found for %s", coin)
		return ExitOK
	}
	r.infof("Last sentiment for %s:", coin)
	r.println(formatRecord(*rec))
	return ExitOK
}

func (r *Runner) listAllSentiments(ctx context.Context) int {
	coins, err := r.svc.ListAllSentiments(ctx)
	if err != nil {
		r.errorf("Error listing all sentiments: %v", err)
		return ExitError
	}
	r.infof("All coins with sentiment history:")
	for _, coin := range coins {
		r.println(coin)
	}
	return ExitOK
}

func (r *Runner) deleteSentimentHistory(ctx context.Context, coin string) int {
	if _, err := r.svc.DeleteSentimentHistory(ctx, coin); err != nil {
		r.errorf("Error deleting sentiment history: %v", err)
		return ExitError
	}
	r.successf("Sentiment history for %s has been deleted", coin)
	return ExitOK
}

func formatRecord(rec domain.SentimentRecord) string {
	return fmt.Sprintf("%s: %s (Price: $%s)", rec.Date, rec.Sentiment, decimal.NewFromFloat(rec.Price).StringFixed(2))
}

// Mute drops all further output. A command that is still running when the
// process is told to stop finishes silently.
func (r *Runner) Mute() {
	r.muted.Store(true)
}

func (r *Runner) emit(w io.Writer, a ...any) {
	if r.muted.Load() {
		return
	}
	fmt.Fprintln(w, a...)
}

func (r *Runner) println(s string) {
	r.emit(r.out, s)
}

func (r *Runner) infof(format string, args ...any) {
	r.emit(r.out, r.info.Render(fmt.Sprintf(format, args...)))
}

func (r *Runner) successf(format string, args ...any) {
	r.emit(r.out, r.success.Render(fmt.Sprintf(format, args...)))
}

func (r *Runner) errorf(format string, args ...any) {
	r.emit(r.errOut, r.failure.Render(fmt.Sprintf(format, args...)))
}

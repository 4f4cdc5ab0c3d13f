package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/oakbooks/ledger/internal/app"
	"github.com/oakbooks/ledger/internal/ledger"
	"github.com/oakbooks/ledger/internal/ledger/accounts"
	"github.com/oakbooks/ledger/internal/ledger/currency"
	"github.com/oakbooks/ledger/internal/ledger/documents"
	"github.com/oakbooks/ledger/internal/ledger/reporting"
	"github.com/oakbooks/ledger/internal/platform/cache"
	"github.com/oakbooks/ledger/internal/platform/db"
	"github.com/oakbooks/ledger/jobs"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  balances     print every account balance as of a date
  balance      print one account balance as of a date
  aging        print aging buckets for an account
  sync         sync a document from a JSON file
  void         void all transactions of a document
  reconcile    enqueue a reconciliation sweep for a document type
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		fatal("load config", err)
	}
	logger := app.NewLogger(cfg)

	switch os.Args[1] {
	case "balances":
		fs := flag.NewFlagSet("balances", flag.ExitOnError)
		asOf := fs.String("as-of", "", "date (2006-01-02), default today")
		_ = fs.Parse(os.Args[2:])
		env := mustEnv(ctx, cfg, logger)
		defer env.close()
		rows, err := env.reports.GetAccountBalances(ctx, parseDate(*asOf))
		if err != nil {
			fatal("account balances", err)
		}
		for _, row := range rows {
			fmt.Printf("%-40s %s\n", row.Account, row.Balance)
		}
	case "balance":
		fs := flag.NewFlagSet("balance", flag.ExitOnError)
		account := fs.String("account", "", "account name (required)")
		asOf := fs.String("as-of", "", "date (2006-01-02), default today")
		_ = fs.Parse(os.Args[2:])
		requireFlag(*account, "-account")
		env := mustEnv(ctx, cfg, logger)
		defer env.close()
		balance, err := env.reports.GetAccountBalance(ctx, *account, parseDate(*asOf))
		if err != nil {
			fatal("account balance", err)
		}
		fmt.Println(balance)
	case "aging":
		fs := flag.NewFlagSet("aging", flag.ExitOnError)
		account := fs.String("account", "", "account name (required)")
		asOf := fs.String("as-of", "", "date (2006-01-02), default today")
		_ = fs.Parse(os.Args[2:])
		requireFlag(*account, "-account")
		env := mustEnv(ctx, cfg, logger)
		defer env.close()
		breakdown := []reporting.AgingBucket{
			{Lower: -1, Upper: 0},
			{Lower: 1, Upper: 30},
			{Lower: 31, Upper: 60},
			{Lower: 61, Upper: 90},
			{Lower: 91},
		}
		lines, err := env.reports.GetAging(ctx, breakdown, *account, parseDate(*asOf))
		if err != nil {
			fatal("aging", err)
		}
		for _, line := range lines {
			label := fmt.Sprintf("%d-%d", line.Bucket.Lower, line.Bucket.Upper)
			if line.Bucket == breakdown[0] {
				label = "current"
			} else if line.Bucket.Upper == 0 {
				label = fmt.Sprintf("%d+", line.Bucket.Lower)
			}
			fmt.Printf("%-10s %4d docs  %s\n", label, line.Count, line.Amount)
		}
	case "sync":
		fs := flag.NewFlagSet("sync", flag.ExitOnError)
		file := fs.String("file", "", "JSON file with document and transactions (required)")
		_ = fs.Parse(os.Args[2:])
		requireFlag(*file, "-file")
		var payload jobs.SyncDocumentPayload
		data, err := os.ReadFile(*file)
		if err != nil {
			fatal("read file", err)
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			fatal("parse file", err)
		}
		env := mustEnv(ctx, cfg, logger)
		defer env.close()
		doc, txs := syncInputs(payload)
		if err := env.svc.SyncDocument(ctx, doc, txs); err != nil {
			fatal("sync document", err)
		}
		fmt.Printf("synced %s %s\n", payload.DocumentType, payload.Reference)
	case "void":
		fs := flag.NewFlagSet("void", flag.ExitOnError)
		docType := fs.String("type", "", "document type (required)")
		ref := fs.String("ref", "", "document reference (required)")
		_ = fs.Parse(os.Args[2:])
		requireFlag(*docType, "-type")
		requireFlag(*ref, "-ref")
		env := mustEnv(ctx, cfg, logger)
		defer env.close()
		err := env.svc.VoidDocument(ctx, ledger.DocumentInput{Type: *docType, Reference: *ref})
		if err != nil {
			fatal("void document", err)
		}
		fmt.Printf("voided %s %s\n", *docType, *ref)
	case "reconcile":
		fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
		docType := fs.String("type", "", "document type (required)")
		refs := fs.String("refs", "", "comma-separated references that still exist upstream")
		_ = fs.Parse(os.Args[2:])
		requireFlag(*docType, "-type")
		enq := jobs.NewEnqueuer(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer enq.Close()
		var references []string
		if *refs != "" {
			references = strings.Split(*refs, ",")
		}
		runID, err := enq.EnqueueReconcileDocuments(ctx, jobs.ReconcileDocumentsPayload{
			DocumentType: *docType,
			References:   references,
		})
		if err != nil {
			fatal("enqueue reconcile", err)
		}
		fmt.Printf("enqueued reconcile run %s\n", runID)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

type env struct {
	svc     *ledger.Service
	reports *reporting.Service
	close   func()
}

func mustEnv(ctx context.Context, cfg *app.Config, logger *slog.Logger) *env {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		fatal("connect database", err)
	}
	ledgerRepo := ledger.NewRepository(pool)
	info, err := ledgerRepo.GetLedger(ctx, cfg.LedgerID)
	if err != nil {
		pool.Close()
		fatal("load ledger", err)
	}
	chart := accounts.NewChart(accounts.NewRepository(pool), info.ID, info.CurrencyID)
	currencyRepo := currency.NewRepository(pool)
	rateSource := currency.NewHTTPRateSource(cfg.RateSourceURL, nil)

	// Redis is optional for CLI use; without it rate lookups fall through to
	// the database and provider.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, rate cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	exchange := currency.NewExchange(currencyRepo, rateSource, redisClient, cfg.RateCacheTTL, logger)
	docsRepo := documents.NewRepository(pool)

	return &env{
		svc:     ledger.NewService(ledgerRepo, docsRepo, chart, currencyRepo, exchange, info, logger),
		reports: reporting.NewService(reporting.NewRepository(pool), chart, info),
		close: func() {
			if redisClient != nil {
				_ = redisClient.Close()
			}
			pool.Close()
		},
	}
}

func syncInputs(payload jobs.SyncDocumentPayload) (ledger.DocumentInput, []ledger.TransactionInput) {
	txs := make([]ledger.TransactionInput, 0, len(payload.Transactions))
	for _, t := range payload.Transactions {
		entries := make([]ledger.EntryInput, 0, len(t.Entries))
		for _, e := range t.Entries {
			var party *ledger.Party
			if e.Party != nil {
				party = &ledger.Party{Type: e.Party.Type, ID: e.Party.ID}
			}
			entries = append(entries, ledger.EntryInput{
				Account:          e.Account,
				Type:             ledger.EntryType(e.Type),
				Amount:           e.Amount,
				AmountInCurrency: e.AmountInCurrency,
				Party:            party,
				DocumentID:       e.DocumentID,
			})
		}
		txs = append(txs, ledger.TransactionInput{Date: t.Date, Currency: t.Currency, Description: t.Description, Entries: entries})
	}
	var docParty *ledger.Party
	if payload.Party != nil {
		docParty = &ledger.Party{Type: payload.Party.Type, ID: payload.Party.ID}
	}
	return ledger.DocumentInput{Type: payload.DocumentType, Reference: payload.Reference, Date: payload.Date, Party: docParty}, txs
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		fatal("parse date", err)
	}
	return t
}

func requireFlag(value, name string) {
	if value == "" {
		fmt.Fprintf(os.Stderr, "missing required flag %s\n", name)
		os.Exit(2)
	}
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "ledgerctl: %s: %v\n", msg, err)
	os.Exit(1)
}

package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/keidrun/coinietrade/internal/domain"
	"github.com/keidrun/coinietrade/internal/exchange"
	"github.com/keidrun/coinietrade/internal/exchange/bitflyer"
	"github.com/keidrun/coinietrade/internal/exchange/zaif"
)

// RunMode polls available rules on the scheduler interval and runs each one
// under a distributed per-rule lock, until the context is cancelled. When
// ledger archival is enabled it also runs the archive loop.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting run mode",
		slog.Duration("interval", a.cfg.Scheduler.Interval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Scheduler.Interval.Duration)
		defer ticker.Stop()

		for {
			a.runAvailableRules(ctx, deps)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// OnceMode runs every available rule a single time and exits. Useful for
// cron-style deployments and manual invocations.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")
	a.runAvailableRules(ctx, deps)
	return nil
}

// runAvailableRules loads every available rule and executes each under its
// per-rule lock. A rule held by another process is skipped, not an error.
func (a *App) runAvailableRules(ctx context.Context, deps *Dependencies) {
	rules, err := deps.Rules.ListByStatus(ctx, domain.RuleStatusAvailable)
	if err != nil {
		a.logger.ErrorContext(ctx, "list rules failed", slog.String("error", err.Error()))
		return
	}

	for _, rule := range rules {
		select {
		case <-ctx.Done():
			return
		default:
		}
		a.runRule(ctx, deps, rule)
	}
}

// runRule executes one rule under its distributed lock, notifies the outcome,
// and locks the rule out when its failure count reaches the configured limit.
func (a *App) runRule(ctx context.Context, deps *Dependencies, rule domain.Rule) {
	log := a.logger.With(slog.String("rule_id", rule.RuleID))

	release, err := deps.Locks.Acquire(ctx, "rule:"+rule.RuleID, a.cfg.Scheduler.LockTTL.Duration)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			log.DebugContext(ctx, "rule locked by another process, skipping")
			return
		}
		log.ErrorContext(ctx, "acquire rule lock failed", slog.String("error", err.Error()))
		return
	}
	defer release()

	result, err := deps.Runner.Run(ctx, rule)
	if err != nil {
		log.ErrorContext(ctx, "rule run failed", slog.String("error", err.Error()))
		_ = deps.Notifier.NotifyError(ctx, rule, err)
		return
	}

	_ = deps.Notifier.NotifyRunResult(ctx, rule, result)

	a.lockOutIfNeeded(ctx, deps, rule.RuleID)
}

// lockOutIfNeeded reloads the rule and flips it to locked when its failure
// count has reached max_failed_limit. The status write is compare-and-swap; a
// conflict means another process already acted, which is fine.
func (a *App) lockOutIfNeeded(ctx context.Context, deps *Dependencies, ruleID string) {
	rule, err := deps.Rules.GetByID(ctx, ruleID)
	if err != nil {
		a.logger.WarnContext(ctx, "reload rule for lockout check failed",
			slog.String("rule_id", ruleID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !rule.ShouldLock() || rule.Status == domain.RuleStatusLocked {
		return
	}

	rule.Status = domain.RuleStatusLocked
	rule.ModifiedAt = time.Now().UTC()
	if err := deps.Rules.Update(ctx, rule, rule.Version); err != nil {
		if !errors.Is(err, domain.ErrVersionConflict) {
			a.logger.WarnContext(ctx, "lock out rule failed",
				slog.String("rule_id", ruleID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	a.logger.WarnContext(ctx, "rule locked out after repeated failures",
		slog.String("rule_id", ruleID),
		slog.Int64("failure_count", rule.Counts.FailureCount),
		slog.Int64("max_failed_limit", rule.MaxFailedLimit),
	)
}

// archiveLoop periodically exports terminal ledger rows older than the
// retention window to object storage.
func (a *App) archiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
		n, err := deps.Archiver.ArchiveBefore(ctx, cutoff)
		if err != nil {
			a.logger.ErrorContext(ctx, "ledger archive failed", slog.String("error", err.Error()))
			continue
		}
		if n > 0 {
			a.logger.InfoContext(ctx, "ledger archive completed", slog.Int("rows", n))
		}
	}
}

// monitorPair is the pair watched in monitor mode.
const (
	monitorProductCode = "BTC_JPY"
	monitorCoinUnit    = "btc"
	monitorCurrency    = "jpy"
)

// MonitorMode streams the bitFlyer board over websocket, polls the Zaif board
// over REST, and logs the cross-venue spread. No orders are placed and no
// database is needed.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.String("product", monitorProductCode),
	)

	// Public board endpoint, no credentials needed.
	zaifClient := zaif.New(exchange.Credentials{}, exchange.Pair{
		CoinUnit:     monitorCoinUnit,
		CurrencyUnit: monitorCurrency,
	})
	if a.cfg.Zaif.BaseURL != "" {
		zaifClient.SetBaseURL(a.cfg.Zaif.BaseURL)
	}

	ws := bitflyer.NewWSClient(a.cfg.Bitflyer.WsURL)

	var latest struct {
		book domain.OrderBook
		ok   bool
	}
	bookCh := make(chan domain.OrderBook, 1)
	ws.OnBoard(func(productCode string, book domain.OrderBook) {
		if productCode != monitorProductCode {
			return
		}
		select {
		case bookCh <- book:
		default:
		}
	})

	if err := ws.Connect(ctx); err != nil {
		return err
	}
	defer ws.Close()
	if err := ws.SubscribeBoard(ctx, monitorProductCode); err != nil {
		return err
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case book := <-bookCh:
			latest.book, latest.ok = book, true
		case <-ticker.C:
			if !latest.ok {
				continue
			}
			zaifBook, err := zaifClient.Board(ctx)
			if err != nil {
				a.logger.WarnContext(ctx, "zaif board fetch failed", slog.String("error", err.Error()))
				continue
			}
			a.logger.InfoContext(ctx, "cross-venue board",
				slog.Float64("bitflyer_bid", latest.book.BestBid().Price),
				slog.Float64("bitflyer_ask", latest.book.BestAsk().Price),
				slog.Float64("zaif_bid", zaifBook.BestBid().Price),
				slog.Float64("zaif_ask", zaifBook.BestAsk().Price),
				slog.Float64("spread_a", latest.book.BestBid().Price-zaifBook.BestAsk().Price),
				slog.Float64("spread_b", zaifBook.BestBid().Price-latest.book.BestAsk().Price),
			)
		}
	}
}

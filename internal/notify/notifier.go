// Package notify delivers rule run outcomes to operator channels. Each
// configured channel renders a typed Event its own way (Telegram markdown,
// Discord embeds); the Notifier filters by event kind and fans out.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/keidrun/coinietrade/internal/domain"
)

// Event kinds emitted per rule invocation. Operators pick which ones they
// want via notify.events in the config.
const (
	EventRunSuccess      = "run_success"
	EventRunFailure      = "run_failure"
	EventRunCancellation = "run_cancellation"
	EventError           = "error"
)

// Event is one notification-worthy occurrence during rule execution. Senders
// receive the event itself rather than pre-rendered text so each channel can
// format the rule and outcome natively.
type Event struct {
	Kind   string
	Rule   domain.Rule
	Result domain.RunResult
	Err    error
	At     time.Time
}

// Pair returns the rule's traded pair, e.g. "btc/jpy".
func (e Event) Pair() string {
	return e.Rule.CoinUnit + "/" + e.Rule.CurrencyUnit
}

// Headline returns the one-line summary for the event kind.
func (e Event) Headline() string {
	switch e.Kind {
	case EventRunSuccess:
		return "Arbitrage executed"
	case EventRunCancellation:
		return "Arbitrage canceled"
	case EventRunFailure:
		return "Arbitrage failed"
	case EventError:
		return "Run error"
	}
	return e.Kind
}

// Sender is the interface each notification channel implements.
type Sender interface {
	// Send delivers one event to the channel.
	Send(ctx context.Context, ev Event) error
	// Name returns the channel identifier, e.g. "telegram".
	Name() string
}

// Notifier dispatches events to one or more Senders, filtered by kind.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event kinds
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only events
// whose kind appears in the events slice are forwarded; an empty slice allows
// every kind.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify forwards the event to every sender when its kind is allowed.
func (n *Notifier) Notify(ctx context.Context, ev Event) error {
	if len(n.events) > 0 && !n.events[ev.Kind] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", ev.Kind),
		)
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, ev); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", ev.Kind),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("event", ev.Kind),
				slog.String("rule_id", ev.Rule.RuleID),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// NotifyRunResult translates a rule invocation outcome into the matching
// event. No-op runs (zero-profit successes) are skipped to keep channels
// quiet during idle polling.
func (n *Notifier) NotifyRunResult(ctx context.Context, rule domain.Rule, res domain.RunResult) error {
	var kind string
	switch res.Outcome {
	case domain.OutcomeSuccess:
		if res.AdditionalProfit == 0 {
			return nil
		}
		kind = EventRunSuccess
	case domain.OutcomeCancellation:
		kind = EventRunCancellation
	case domain.OutcomeFailure:
		kind = EventRunFailure
	default:
		return nil
	}
	return n.Notify(ctx, Event{Kind: kind, Rule: rule, Result: res})
}

// NotifyError reports a scheduler-level error that produced no run result.
func (n *Notifier) NotifyError(ctx context.Context, rule domain.Rule, err error) error {
	return n.Notify(ctx, Event{Kind: EventError, Rule: rule, Err: err})
}

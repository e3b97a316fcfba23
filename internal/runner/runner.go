// Package runner drives one msgbar run: every configured source and account
// is fetched, normalized, aggregated, ordered and deduplicated in turn.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"msgbar/internal/dedup"
	"msgbar/internal/model"
	"msgbar/internal/notifier"
	"msgbar/internal/pipeline"
	"msgbar/internal/source"
	"msgbar/internal/util"
)

// ErrorKind classifies a per-account failure for the renderer.
type ErrorKind string

const (
	// KindFetch covers an unreachable source or rejected credentials.
	KindFetch ErrorKind = "fetch"
	// KindContract means the adapter handed over rows that broke the
	// conversation partitioning. Processing of the account stops.
	KindContract ErrorKind = "contract"
	// KindStore is a failed write of the processed store.
	KindStore ErrorKind = "store"
)

// AccountError reports why one source and account produced no result.
type AccountError struct {
	Kind    ErrorKind
	Source  model.SourceType
	Account string
	Err     error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Source, e.Account, e.Kind, e.Err)
}

func (e *AccountError) Unwrap() error { return e.Err }

// AccountResult is the outcome of one source and account.
type AccountResult struct {
	Source model.SourceType
	// Label is the configured account label, Account the resolved identity.
	Label         string
	Account       string
	Unread        int
	InboxLink     string
	Conversations []*model.Conversation
	Decision      dedup.Decision
	Notified      bool
	Err           *AccountError
}

// Name is the account identity shown to the user.
func (r AccountResult) Name() string {
	return util.FirstNonEmpty(r.Account, r.Label)
}

// Report collects the results of a run in source and account order.
type Report struct {
	Accounts []AccountResult
}

// UnreadTotal sums unread counts over the accounts that fetched successfully.
func (r Report) UnreadTotal() int {
	total := 0
	for _, a := range r.Accounts {
		if a.Err == nil || a.Err.Kind == KindStore {
			total += a.Unread
		}
	}
	return total
}

// Err joins the per-account errors.
func (r Report) Err() error {
	var errs []error
	for _, a := range r.Accounts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errors.Join(errs...)
}

// Progress is called after each account completes.
type Progress func(done, total int)

type Options struct {
	Sources    []source.Source
	Store      dedup.Store
	Notifier   notifier.Notifier
	Normalizer pipeline.Normalizer
	// Timeout bounds the fetch of a single account. Zero means no limit.
	Timeout       time.Duration
	NotifyEnabled bool
	StrictSenders bool
	// DryRun decides without notifying or persisting.
	DryRun   bool
	Progress Progress
	Log      *zap.Logger
}

type Runner struct {
	opts Options
	log  *zap.Logger
}

func New(opts Options) *Runner {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{opts: opts, log: log}
}

// Run processes every account sequentially. A failing account is recorded
// in the report and never stops the others.
func (r *Runner) Run(ctx context.Context) Report {
	total := 0
	for _, src := range r.opts.Sources {
		total += len(src.Accounts())
	}

	var rep Report
	for _, src := range r.opts.Sources {
		for _, label := range src.Accounts() {
			rep.Accounts = append(rep.Accounts, r.runAccount(ctx, src, label))
			if r.opts.Progress != nil {
				r.opts.Progress(len(rep.Accounts), total)
			}
		}
	}
	return rep
}

func (r *Runner) runAccount(ctx context.Context, src source.Source, label string) AccountResult {
	res := AccountResult{Source: src.Type(), Label: label}
	log := r.log.With(zap.String("source", string(src.Type())), zap.String("account", label))
	fail := func(kind ErrorKind, err error) AccountResult {
		res.Err = &AccountError{Kind: kind, Source: res.Source, Account: res.Name(), Err: err}
		if kind == KindContract {
			log.Error("account processing stopped", zap.Error(err))
		} else {
			log.Warn("account failed", zap.String("kind", string(kind)), zap.Error(err))
		}
		return res
	}

	fetchCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	start := time.Now()
	batch, err := src.Fetch(fetchCtx, label)
	if err != nil {
		return fail(KindFetch, err)
	}
	res.Account = batch.Account
	res.InboxLink = batch.InboxLink
	log.Debug("fetched", zap.Int("rows", len(batch.Raw)), zap.Duration("took", time.Since(start)))

	built, err := pipeline.Build(r.opts.Normalizer, batch.Raw, batch.Annotate)
	if built.Skipped != nil {
		log.Warn("skipped malformed rows", zap.Error(built.Skipped))
	}
	if err != nil {
		return fail(KindContract, err)
	}
	res.Conversations = built.Conversations
	if len(built.Conversations) > 0 {
		res.Unread = batch.Unread()
	}

	// Partitions are keyed by the resolved identity so renamed labels keep
	// their history.
	partition := strings.ToLower(res.Name())
	known, err := r.opts.Store.Load(ctx, res.Source, partition)
	if err != nil {
		log.Debug("processed store unreadable, treating as empty", zap.Error(err))
		known = nil
	}
	in := dedup.Input{
		Source:          res.Source,
		Account:         partition,
		Conversations:   built.Conversations,
		Known:           known,
		ExplicitSenders: batch.ExplicitSenders,
		StrictSenders:   r.opts.StrictSenders,
	}
	res.Decision = dedup.Decide(in)
	log.Debug("decided",
		zap.Bool("notify", res.Decision.Notify),
		zap.Bool("purge", res.Decision.Purge),
		zap.Int("new", len(res.Decision.NewKeys)))

	if r.opts.DryRun {
		return res
	}
	if res.Decision.Notify && r.opts.NotifyEnabled && r.opts.Notifier != nil {
		title, body := notifier.Compose(res.Unread, res.Decision.Senders)
		if err := r.opts.Notifier.Notify(title, body); err != nil {
			log.Warn("notification failed", zap.Error(err))
		} else {
			res.Notified = true
		}
	}
	if err := dedup.Apply(ctx, r.opts.Store, in, res.Decision); err != nil {
		return fail(KindStore, err)
	}
	return res
}

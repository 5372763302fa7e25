package controller

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"hireflow-engine/internal/domain"
	"hireflow-engine/internal/events"
	"hireflow-engine/internal/metrics"
	"hireflow-engine/internal/pipeline"
)

// runCycle is one full check pass: discover eligible accounts and fan out
// a check per account. Account failures are isolated; one bad mailbox
// never stops the others.
func (c *Controller) runCycle(ctx context.Context) {
	start := c.clock()
	defer func() { metrics.ObserveCycle(c.clock().Sub(start)) }()

	accounts, err := c.Accounts.ListAutomationAccounts(ctx)
	if err != nil {
		c.Log.Warn("[controller] account discovery failed", zap.Error(err))
		return
	}
	if len(accounts) == 0 {
		c.noteEmptyCycle()
		return
	}
	c.resetEmptyCycles()

	g, gctx := errgroup.WithContext(ctx)
	for _, acct := range accounts {
		if !c.reg.tryAcquire(acct.ID) {
			c.Log.Debug("[controller] account still processing, skipping",
				zap.String("account_id", acct.ID))
			continue
		}
		acct := acct
		g.Go(func() error {
			defer c.reg.release(acct.ID)
			if err := c.checkAccount(gctx, acct); err != nil {
				c.Log.Warn("[controller] account check failed",
					zap.String("account_id", acct.ID),
					zap.String("name", acct.Name),
					zap.Error(err),
				)
				metrics.AccountCheckErrors.WithLabelValues(errorKind(err)).Inc()
				if serr := c.Accounts.SetAccountLastError(ctx, acct.ID, err.Error()); serr != nil {
					c.Log.Warn("[controller] record account error failed", zap.Error(serr))
				}
				if c.Hub != nil {
					c.Hub.PublishEvent("", events.TypeAccountError, map[string]any{
						"account_id": acct.ID,
						"error":      err.Error(),
					})
				}
			}
			// never propagate: allSettled semantics across accounts
			return nil
		})
	}
	_ = g.Wait()
}

// checkAccount polls one mailbox: list since the lookback window, drop
// already-imported senders, then process in rate-limited batches.
func (c *Controller) checkAccount(ctx context.Context, acct domain.MailAccount) error {
	s := c.currentSettings()
	now := c.clock()

	password, err := c.Secrets.Decrypt(acct.EncryptedPassword)
	if err != nil {
		return fmt.Errorf("decrypt password for %s: %w", acct.Name, err)
	}

	sess, err := c.Dialer.Dial(ctx, acct, password)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	// Lookback is bounded: never further back than the window, never
	// before the last successful check.
	since := now.Add(-s.Lookback)
	if acct.LastChecked.After(since) {
		since = acct.LastChecked
	}

	msgs, err := sess.ListMessages(ctx, since, s.MaxEmailsPerCheck, s.Filters)
	if err != nil {
		return err
	}

	fresh := make([]domain.EmailMessage, 0, len(msgs))
	for _, m := range msgs {
		if c.senderAlreadyImported(ctx, m.SenderEmail) {
			continue
		}
		fresh = append(fresh, m)
	}

	c.Log.Info("[controller] account checked",
		zap.String("account_id", acct.ID),
		zap.String("name", acct.Name),
		zap.Int("matched", len(msgs)),
		zap.Int("fresh", len(fresh)),
	)

	processed, imported := c.processBatches(ctx, sess, acct, fresh, s)

	if err := c.Accounts.UpdateAccountLastChecked(ctx, acct.ID, now); err != nil {
		c.Log.Warn("[controller] update last checked failed", zap.Error(err))
	}
	if processed > 0 {
		if err := c.Accounts.IncrementAccountStats(ctx, acct.ID, processed, imported); err != nil {
			c.Log.Warn("[controller] update account stats failed", zap.Error(err))
		}
	}
	if serr := c.Accounts.SetAccountLastError(ctx, acct.ID, ""); serr != nil {
		c.Log.Warn("[controller] clear account error failed", zap.Error(serr))
	}
	return nil
}

// processBatches walks the fresh messages in fixed-size batches with a
// rate-limited gap between batches, so one busy mailbox cannot hammer the
// mail server or the model API.
func (c *Controller) processBatches(ctx context.Context, sess pipeline.MailSession, acct domain.MailAccount, msgs []domain.EmailMessage, s Settings) (processed, imported int) {
	batchSize := s.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	var limiter *rate.Limiter
	if s.BatchDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.BatchDelay), 1)
	}

	for i := 0; i < len(msgs); i += batchSize {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return processed, imported
			}
		}
		end := i + batchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		for _, m := range msgs[i:end] {
			if ctx.Err() != nil {
				return processed, imported
			}
			ok, err := c.processOne(ctx, sess, acct, m, s)
			processed++
			if ok {
				imported++
			}
			if err != nil && !domain.IsDuplicate(err) {
				c.Log.Warn("[controller] message failed",
					zap.String("trace_id", m.TraceID),
					zap.Uint32("uid", m.UID),
					zap.Error(err),
				)
			}
		}
	}
	return processed, imported
}

// processOne wraps a single message in the per-message deadline. A timeout
// fails that message only; the batch continues.
func (c *Controller) processOne(ctx context.Context, sess pipeline.MailSession, acct domain.MailAccount, msg domain.EmailMessage, s Settings) (bool, error) {
	mctx := ctx
	if s.MessageTimeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(ctx, s.MessageTimeout)
		defer cancel()
	}
	ok, err := c.Proc.Process(mctx, sess, acct, msg)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return ok, &domain.TimeoutError{UID: msg.UID, Step: "process"}
	}
	return ok, err
}

func (c *Controller) senderAlreadyImported(ctx context.Context, email string) bool {
	if email == "" {
		return false
	}
	existing, err := c.Accounts.FindApplicationByEmail(ctx, email)
	if err != nil {
		// lookup failure is not a reason to drop the message
		return false
	}
	return existing != nil
}

func errorKind(err error) string {
	var connErr *domain.ConnectivityError
	if errors.As(err, &connErr) {
		return "connectivity"
	}
	return "other"
}

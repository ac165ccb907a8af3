// Package ingest runs one poll cycle for a mail account: fetch, decode,
// dedup, lead resolution, mass-mail detection, classification and
// persistence, followed by the watermark update.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/leadmail/internal/address"
	"github.com/nhle/leadmail/internal/ai"
	"github.com/nhle/leadmail/internal/lead"
	"github.com/nhle/leadmail/internal/massmail"
	"github.com/nhle/leadmail/internal/model"
	"github.com/nhle/leadmail/internal/source"
	"github.com/nhle/leadmail/internal/source/email"
	"github.com/nhle/leadmail/internal/store"
	"github.com/nhle/leadmail/internal/textnorm"
)

// Classifier extracts suggestions from one email. *ai.Classifier
// satisfies it.
type Classifier interface {
	Classify(ctx context.Context, subject, content string) (ai.Classification, error)
	Model() string
}

// ClassifierSource returns the classifier to use for an account. It
// returns an error wrapping ai.ErrNotConfigured when the account has no
// usable key.
type ClassifierSource func(account *model.MailAccount) (Classifier, error)

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Store       store.Store
	Connector   source.Connector
	Resolver    *lead.Resolver
	Detector    *massmail.Detector
	Classifiers ClassifierSource
	Logger      zerolog.Logger
}

// Options tunes the watermark window.
type Options struct {
	// InitialLookback is where a new account's watermark starts.
	InitialLookback time.Duration

	// MaxLookback caps the search window after long outages.
	MaxLookback time.Duration

	Now func() time.Time
}

// Pipeline processes mail accounts one cycle at a time. It holds no
// per-account state, so cycles for different accounts may run
// concurrently.
type Pipeline struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger
}

// New creates a Pipeline.
func New(deps Deps, opts Options) *Pipeline {
	if deps.Detector == nil {
		deps.Detector = massmail.NewDetector()
	}
	if opts.InitialLookback <= 0 {
		opts.InitialLookback = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		deps:   deps,
		opts:   opts,
		logger: deps.Logger.With().Str("component", "ingest").Logger(),
	}
}

// RunAccount runs one cycle for account and reports what happened to
// every message. It never panics on a bad message and never returns an
// error: failures are recorded in the report.
func (p *Pipeline) RunAccount(ctx context.Context, account *model.MailAccount) *CycleReport {
	start := p.opts.Now().UTC()
	report := &CycleReport{
		AccountID:   account.ID,
		AccountName: account.Name,
		Started:     start,
	}
	logger := p.logger.With().Str("account", account.ID).Logger()

	defer func() {
		report.Finished = p.opts.Now().UTC()
		p.logReport(logger, report)
	}()

	if err := validateAccount(account); err != nil {
		report.Err = err
		return report
	}

	classifier, err := p.classifier(account)
	if err != nil {
		report.Err = err
		return report
	}

	wm, err := p.deps.Store.GetOrCreateWatermark(ctx, account.ID, start, p.opts.InitialLookback)
	if err != nil {
		report.Err = fmt.Errorf("loading watermark: %w", err)
		return report
	}
	report.WindowStart = wm.FetchWindowStart(start, p.opts.MaxLookback)

	sess, err := p.deps.Connector.Connect(ctx, account)
	if err != nil {
		report.Err = err
		if source.IsAuthError(err) {
			p.notify(ctx, logger, model.Notification{
				AccountID: account.ID,
				Kind:      model.NotificationAuthError,
				Message:   fmt.Sprintf("%s: the mail server rejected the credentials. Update the account to resume polling.", account.Name),
			})
		}
		return report
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Debug().Err(err).Msg("closing session")
		}
	}()

	uids, err := sess.SearchSince(ctx, report.WindowStart, account.FromFilter)
	if err != nil {
		report.Err = fmt.Errorf("searching mailbox: %w", err)
		return report
	}
	report.Found = len(uids)
	logger.Debug().
		Time("since", report.WindowStart).
		Int("found", len(uids)).
		Msg("searched mailbox")

	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			report.Err = fmt.Errorf("cycle interrupted: %w", err)
			break
		}

		res, abort := p.processMessage(ctx, logger, sess, account, classifier, uid)
		report.Results = append(report.Results, res)
		if abort {
			report.Err = res.Err
			break
		}
	}

	if report.Err == nil {
		p.advanceWatermark(ctx, logger, report)
	}
	return report
}

// processMessage handles one UID. abort is set when the session is no
// longer usable and the rest of the batch must wait for the next cycle.
func (p *Pipeline) processMessage(
	ctx context.Context,
	logger zerolog.Logger,
	sess source.Session,
	account *model.MailAccount,
	classifier Classifier,
	uid uint32,
) (res Result, abort bool) {
	res.UID = uid
	fail := func(err error, retryable bool) Result {
		res.Outcome = OutcomeFailed
		res.Err = err
		res.Retryable = retryable
		logger.Warn().Err(err).Uint32("uid", uid).Msg("message failed")
		return res
	}

	raw, err := sess.Fetch(ctx, uid)
	switch {
	case errors.Is(err, email.ErrMessageGone):
		res.Outcome = OutcomeSkipped
		res.Skip = SkipGone
		return res, false
	case err != nil:
		lost := source.IsTransient(err) || ctx.Err() != nil
		return fail(err, true), lost
	}

	msg, err := email.ParseMessage(raw, p.opts.Now())
	if err != nil {
		return fail(err, false), false
	}
	res.MessageID = msg.MessageID
	res.ReceivedAt = msg.ReceivedAt

	exists, err := p.deps.Store.EmailExists(ctx, account.ID, msg.MessageID)
	if err != nil {
		return fail(err, true), false
	}
	if exists {
		logger.Debug().Str("message_id", msg.MessageID).Msg("duplicate message")
		res.Outcome = OutcomeSkipped
		res.Skip = SkipDuplicate
		return res, false
	}

	cycle := store.EmailCycle{AccountID: account.ID, Email: msg}

	var known *model.Lead
	if address.IsValid(msg.SenderAddress) {
		cycle.Sender = &store.LeadSender{Address: msg.SenderAddress, Name: msg.SenderDisplayName}
		known, err = p.deps.Resolver.Lookup(ctx, account.ID, msg.SenderAddress)
		if err != nil {
			return fail(err, true), false
		}
	} else {
		res.Unknown = true
	}

	verdict := p.deps.Detector.Detect(msg)
	cycle.IsMassMail = verdict.IsMassMail
	cycle.MassMailReason = verdict.Reason
	res.MassMail = verdict.IsMassMail

	spam := known != nil && known.Status == model.LeadStatusSpam
	if cycle.Sender != nil && !verdict.IsMassMail && !spam {
		p.classify(ctx, logger, classifier, msg, &cycle, &res)
	}

	stored, err := p.deps.Resolver.StoreCycle(ctx, cycle)
	if errors.Is(err, store.ErrDuplicate) {
		logger.Debug().Str("message_id", msg.MessageID).Msg("duplicate message")
		res.Outcome = OutcomeSkipped
		res.Skip = SkipDuplicate
		return res, false
	}
	if err != nil {
		return fail(fmt.Errorf("storing UID %d: %w", uid, err), true), ctx.Err() != nil
	}

	res.Outcome = OutcomeStored
	res.Email = stored.Email
	res.Items = cycle.Items.Count()

	if ld := stored.Lead; ld != nil {
		res.LeadID = ld.ID
		res.LeadCreated = stored.LeadCreated
		if stored.LeadCreated {
			leadID := ld.ID
			p.notify(ctx, logger, model.Notification{
				AccountID: account.ID,
				LeadID:    &leadID,
				Kind:      model.NotificationNewLead,
				Message:   fmt.Sprintf("New lead: %s <%s>", ld.Name, ld.Email),
			})
		}
	}
	return res, false
}

// classify fills the cycle's analysis and items. Failures are logged and
// leave the cycle without items.
func (p *Pipeline) classify(
	ctx context.Context,
	logger zerolog.Logger,
	classifier Classifier,
	msg *model.NormalizedEmail,
	cycle *store.EmailCycle,
	res *Result,
) {
	content := textnorm.StripQuotes(msg.BodyText)
	if content == "" {
		content = msg.BodyText
	}

	c, err := classifier.Classify(ctx, msg.Subject, content)
	if err != nil {
		res.ClassifyErr = err
		logger.Warn().
			Err(err).
			Str("message_id", msg.MessageID).
			Msg("classification failed, storing without suggestions")
		return
	}
	res.Classified = true

	record := &store.AIRecord{Model: classifier.Model(), At: p.opts.Now().UTC()}
	switch c := c.(type) {
	case ai.Suggestions:
		record.Raw = c.Raw
		cycle.Items = ai.Materialize(c, msg.ReceivedAt)
	case ai.ParseError:
		record.Raw = c.Raw
	}
	cycle.Analysis = record
}

// advanceWatermark moves the watermark to the cycle start, or to the
// earliest retryable failure so that message is searched again. A
// retryable failure without a received time holds the watermark.
func (p *Pipeline) advanceWatermark(ctx context.Context, logger zerolog.Logger, report *CycleReport) {
	target := report.Started
	for _, res := range report.Results {
		if res.Outcome != OutcomeFailed || !res.Retryable {
			continue
		}
		if res.ReceivedAt.IsZero() {
			logger.Info().Uint32("uid", res.UID).Msg("watermark held by unfetched message")
			return
		}
		if res.ReceivedAt.Before(target) {
			target = res.ReceivedAt.UTC()
		}
	}

	if err := p.deps.Store.AdvanceWatermark(ctx, report.AccountID, target); err != nil {
		logger.Error().Err(err).Msg("advancing watermark")
		return
	}
	report.Watermark = target
}

func (p *Pipeline) classifier(account *model.MailAccount) (Classifier, error) {
	if p.deps.Classifiers == nil {
		return nil, &source.ConfigError{AccountID: account.ID, Field: "ai_api_key"}
	}
	c, err := p.deps.Classifiers(account)
	if errors.Is(err, ai.ErrNotConfigured) {
		return nil, &source.ConfigError{AccountID: account.ID, Field: "ai_api_key"}
	}
	if err != nil {
		return nil, fmt.Errorf("creating classifier: %w", err)
	}
	return c, nil
}

func (p *Pipeline) notify(ctx context.Context, logger zerolog.Logger, n model.Notification) {
	if err := p.deps.Store.CreateNotification(ctx, n); err != nil {
		logger.Warn().Err(err).Str("kind", string(n.Kind)).Msg("creating notification")
	}
}

func (p *Pipeline) logReport(logger zerolog.Logger, r *CycleReport) {
	var ev *zerolog.Event
	if r.Err != nil {
		ev = logger.Error().Err(r.Err)
	} else {
		ev = logger.Info()
	}
	ev.Int("found", r.Found).
		Int("stored", r.Stored()).
		Int("skipped", r.Skipped()).
		Int("failed", r.Failed()).
		Int("new_leads", r.LeadsCreated()).
		Int("mass_mail", r.MassMail()).
		Int("ai_items", r.Items()).
		Dur("duration", r.Duration()).
		Bool("watermark_advanced", r.WatermarkAdvanced()).
		Msg("cycle finished")
}

func validateAccount(a *model.MailAccount) error {
	switch {
	case a.MailServer == "":
		return &source.ConfigError{AccountID: a.ID, Field: "mail_server"}
	case a.Username == "":
		return &source.ConfigError{AccountID: a.ID, Field: "mail_username"}
	case a.Password == "":
		return &source.ConfigError{AccountID: a.ID, Field: "mail_password"}
	}
	return nil
}

// ClassifiersFrom adapts an ai.Factory to a ClassifierSource.
func ClassifiersFrom(f *ai.Factory) ClassifierSource {
	return func(account *model.MailAccount) (Classifier, error) {
		c, err := f.Classifier(account)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

package boleto

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Neskrux/CrmInvest-sub003/internal/alert"
	"github.com/Neskrux/CrmInvest-sub003/internal/config"
	"github.com/Neskrux/CrmInvest-sub003/internal/lock"
	"github.com/Neskrux/CrmInvest-sub003/internal/phone"
	"github.com/Neskrux/CrmInvest-sub003/internal/retry"
	"github.com/Neskrux/CrmInvest-sub003/internal/templates"
	"github.com/Neskrux/CrmInvest-sub003/internal/whatsapp"
)

// failureRateThreshold is the share of failed recipients above which the
// operator is alerted.
const failureRateThreshold = 0.5

// Sender is the gateway the service delivers reminders through.
type Sender interface {
	Send(ctx context.Context, to, body string) (*whatsapp.Receipt, error)
	SendTemplate(ctx context.Context, to, contentSID string, vars map[string]string) (*whatsapp.Receipt, error)
	Sandbox() bool
}

// Service runs the daily boleto reminder batch for one kind at a time.
type Service struct {
	repo     Repository
	registry *templates.Registry
	sender   Sender
	alerts   alert.Channel
	locker   lock.Locker
	policy   retry.Policy
	pacer    *rate.Limiter
	alertTo  string
	loc      *time.Location
	lockTTL  time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewService(
	cfg *config.Config,
	repo Repository,
	registry *templates.Registry,
	sender Sender,
	alerts alert.Channel,
	locker lock.Locker,
	log *zap.Logger,
) *Service {
	s := &Service{
		repo:     repo,
		registry: registry,
		sender:   sender,
		alerts:   alerts,
		locker:   locker,
		policy:   retry.Policy{MaxRetries: cfg.Retry.MaxRetries, BaseDelay: cfg.Retry.BaseDelay},
		alertTo:  cfg.Alert.To,
		loc:      cfg.Schedule.Location(),
		lockTTL:  cfg.Redis.LockTTL,
		now:      time.Now,
		log:      log.Named("boleto"),
	}
	if s.lockTTL <= 0 {
		s.lockTTL = 30 * time.Minute
	}
	// The sandbox rejects bursts; production relies on the gateway's own limits.
	if sender.Sandbox() && cfg.WhatsApp.SandboxPacing > 0 {
		s.pacer = rate.NewLimiter(rate.Every(cfg.WhatsApp.SandboxPacing), 1)
	}
	return s
}

// recipientGroup is every due boleto of one patient in a run.
type recipientGroup struct {
	recipientID string
	name        string
	contact     string
	obligations []Obligation
}

func (g recipientGroup) ids() []string {
	ids := make([]string, len(g.obligations))
	for i, o := range g.obligations {
		ids[i] = o.ID
	}
	return ids
}

func (g recipientGroup) total() decimal.Decimal {
	sum := decimal.Zero
	for _, o := range g.obligations {
		sum = sum.Add(o.Amount)
	}
	return sum
}

// Run sends the reminder for dayOffset to every patient with an open boleto
// due that many days from today who has not been reminded today. Only a
// selection failure fails the run; per-recipient failures land in the result.
func (s *Service) Run(ctx context.Context, dayOffset int) (*BatchResult, error) {
	kind, err := KindForOffset(dayOffset)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	today := calendarDate(now, s.loc)
	due := today.AddDate(0, 0, dayOffset)

	res := &BatchResult{
		RunID:     uuid.NewString(),
		Kind:      kind,
		DayOffset: dayOffset,
		DueDate:   due.Format(time.DateOnly),
		Outcomes:  []RecipientOutcome{},
		StartedAt: now,
	}
	log := s.log.With(
		zap.String("run_id", res.RunID),
		zap.String("kind", string(kind)),
		zap.String("due_date", res.DueDate),
	)

	lease, err := s.locker.Acquire(ctx, lock.Key(string(kind), today), s.lockTTL)
	switch {
	case errors.Is(err, lock.ErrHeld):
		log.Warn("another run holds the lock")
		return nil, ErrRunInProgress
	case err != nil:
		lease = nil
		log.Warn("run lock unavailable, continuing without it", zap.Error(err))
	default:
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("release run lock", zap.Error(err))
			}
		}()
	}

	// SELECTING
	obligations, err := s.repo.FindDue(ctx, due, kind)
	if err != nil {
		log.Error("select due boletos", zap.Error(err))
		return nil, fmt.Errorf("select due boletos: %w", err)
	}
	res.Found = len(obligations)

	// GROUPING
	groups := groupByRecipient(obligations)
	res.Recipients = len(groups)

	// FILTERING
	pending := make([]recipientGroup, 0, len(groups))
	for _, g := range groups {
		if notifiedToday(g, kind, now, s.loc) {
			res.Skipped++
			continue
		}
		pending = append(pending, g)
	}
	log.Info("selected recipients",
		zap.Int("boletos", res.Found),
		zap.Int("recipients", res.Recipients),
		zap.Int("skipped", res.Skipped),
	)

	// SENDING
	var critical *criticalFailure
	renewed := s.now()
	for _, g := range pending {
		// Paced runs can outlast the lock TTL; keep it ours until the last send.
		if lease != nil && s.now().Sub(renewed) >= s.lockTTL/3 {
			if err := lease.Extend(ctx, s.lockTTL); err != nil {
				log.Warn("extend run lock", zap.Error(err))
			}
			renewed = s.now()
		}
		if s.pacer != nil {
			if err := s.pacer.Wait(ctx); err != nil {
				log.Warn("pacing interrupted", zap.Error(err))
			}
		}
		outcome, sendErr := s.notify(ctx, kind, g, log)
		res.Attempted++
		if outcome.Status == OutcomeSent {
			res.Sent++
		} else {
			res.Failed++
			if critical == nil && sendErr != nil && whatsapp.IsCritical(sendErr) {
				critical = &criticalFailure{outcome: outcome, message: sendErr.Error()}
				var gw *whatsapp.Error
				if errors.As(sendErr, &gw) {
					critical.status = gw.Status
					critical.message = gw.Message
				}
			}
		}
		res.Outcomes = append(res.Outcomes, outcome)
	}

	// FINALIZING
	if res.Attempted > 0 {
		res.FailureRate = float64(res.Failed) / float64(res.Attempted)
	}
	res.FinishedAt = s.now().In(s.loc)
	if critical != nil {
		subject, body, err := criticalAlert(res, *critical, res.FinishedAt)
		s.sendAlert(ctx, log, subject, body, err)
	}
	if res.Attempted > 0 && res.FailureRate > failureRateThreshold {
		subject, body, err := rateAlert(res)
		s.sendAlert(ctx, log, subject, body, err)
	}
	log.Info("run finished",
		zap.Int("attempted", res.Attempted),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Float64("failure_rate", res.FailureRate),
	)
	return res, nil
}

// notify sends one grouped reminder and writes markers on success. The
// returned error is the terminal send error, if any.
func (s *Service) notify(ctx context.Context, kind Kind, g recipientGroup, log *zap.Logger) (RecipientOutcome, error) {
	total := g.total()
	outcome := RecipientOutcome{
		RecipientID: g.recipientID,
		Name:        g.name,
		Obligations: g.ids(),
		Amount:      total.StringFixed(2),
		Status:      OutcomeFailed,
	}
	log = log.With(zap.String("recipient_id", g.recipientID))

	tmpl, err := s.registry.Resolve(string(kind))
	if err != nil {
		outcome.Code = CodeTemplateNotFound
		outcome.Error = err.Error()
		log.Error("no template for kind", zap.Error(err))
		return outcome, nil
	}

	to, err := phone.Normalize(g.contact)
	if err != nil {
		outcome.Code = CodeInvalidPhone
		outcome.Error = err.Error()
		log.Warn("invalid phone", zap.Error(err))
		return outcome, nil
	}
	outcome.Phone = to

	vars := map[string]string{
		VarName:    g.name,
		VarAmount:  FormatBRL(total),
		VarDueDate: FormatDate(g.obligations[0].DueDate),
	}
	approved := tmpl.UsesApproved()

	receipt, err := retry.Do(ctx, s.policy, func(ctx context.Context) (*whatsapp.Receipt, error) {
		outcome.Attempts++
		if approved {
			return s.sender.SendTemplate(ctx, to, tmpl.ContentSID, tmpl.Positional(vars))
		}
		return s.sender.Send(ctx, to, tmpl.Render(vars))
	}, func(attempt int, err error, delay time.Duration) {
		log.Warn("send failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	})
	if err != nil {
		outcome.Code, outcome.Error = failureCode(err), err.Error()
		log.Error("send failed", zap.String("code", outcome.Code), zap.Int("attempts", outcome.Attempts), zap.Error(err))
		return outcome, err
	}

	outcome.Status = OutcomeSent
	outcome.MessageSID = receipt.SID
	if err := s.repo.MarkNotified(ctx, kind, outcome.Obligations, s.now().In(s.loc)); err != nil {
		// The message is already out, so the outcome stays sent.
		log.Error("mark boletos notified", zap.Strings("boletos", outcome.Obligations), zap.Error(err))
	}
	log.Info("reminder sent", zap.String("sid", receipt.SID), zap.Int("boletos", len(g.obligations)))
	return outcome, nil
}

func (s *Service) sendAlert(ctx context.Context, log *zap.Logger, subject, body string, renderErr error) {
	if renderErr != nil {
		log.Error("render operator alert", zap.Error(renderErr))
		return
	}
	if err := s.alerts.SendOperatorAlert(ctx, subject, body, s.alertTo); err != nil {
		log.Error("send operator alert", zap.String("subject", subject), zap.Error(err))
		return
	}
	log.Info("operator alerted", zap.String("subject", subject))
}

func groupByRecipient(obligations []Obligation) []recipientGroup {
	index := make(map[string]int)
	var groups []recipientGroup
	for _, o := range obligations {
		i, ok := index[o.RecipientID]
		if !ok {
			i = len(groups)
			index[o.RecipientID] = i
			groups = append(groups, recipientGroup{
				recipientID: o.RecipientID,
				name:        o.RecipientName,
				contact:     o.Contact,
			})
		}
		groups[i].obligations = append(groups[i].obligations, o)
	}
	return groups
}

func notifiedToday(g recipientGroup, kind Kind, now time.Time, loc *time.Location) bool {
	for _, o := range g.obligations {
		if m := o.MarkerFor(kind); m != nil && sameDay(*m, now, loc) {
			return true
		}
	}
	return false
}

func failureCode(err error) string {
	var gw *whatsapp.Error
	if errors.As(err, &gw) {
		if code := gw.CodeString(); code != "" {
			return code
		}
		if gw.Status != 0 {
			return "HTTP_" + strconv.Itoa(gw.Status)
		}
	}
	return CodeSendFailed
}

package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/nvasquez/accounthub/internal/auth"
	"github.com/nvasquez/accounthub/internal/services"
	"github.com/nvasquez/accounthub/pkg/logger"
)

const (
	defaultAuditRetentionDays        = 90
	defaultLoginHistoryRetentionDays = 180
	defaultSessionSpec               = "@hourly"
	defaultAuditSpec                 = "@daily"
	defaultLoginHistorySpec          = "@daily"
)

// Cleaner coordinates background maintenance: purging expired sessions,
// pruning stale audit logs, and trimming old login history.
type Cleaner struct {
	sessions *iauth.SessionService
	audit    *services.AuditService
	users    *services.UserService
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger

	auditRetentionDays        int
	loginHistoryRetentionDays int

	sessionSchedule      string
	auditSchedule        string
	loginHistorySchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.auditRetentionDays = days
		}
	}
}

// WithLoginHistoryRetentionDays adjusts how long login history is retained.
func WithLoginHistoryRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.loginHistoryRetentionDays = days
		}
	}
}

// WithSessionSchedule overrides the cron specification for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// WithLoginHistorySchedule overrides the cron specification for login history pruning.
func WithLoginHistorySchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.loginHistorySchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(sessions *iauth.SessionService, audit *services.AuditService, users *services.UserService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:                  sessions,
		audit:                     audit,
		users:                     users,
		now:                       time.Now,
		auditRetentionDays:        defaultAuditRetentionDays,
		loginHistoryRetentionDays: defaultLoginHistoryRetentionDays,
		sessionSchedule:           defaultSessionSpec,
		auditSchedule:             defaultAuditSpec,
		loginHistorySchedule:      defaultLoginHistorySpec,
		log:                       logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.sessions == nil && c.audit == nil && c.users == nil {
		return nil
	}

	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			if _, err := c.sessions.CleanupExpired(context.Background()); err != nil {
				c.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil && c.auditRetentionDays > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			cutoff := c.now().AddDate(0, 0, -c.auditRetentionDays)
			if _, err := c.audit.PruneOlderThan(context.Background(), cutoff); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.users != nil && c.loginHistoryRetentionDays > 0 {
		if _, err := c.cron.AddFunc(c.loginHistorySchedule, func() {
			cutoff := c.now().AddDate(0, 0, -c.loginHistoryRetentionDays)
			if _, err := c.users.PruneLoginHistory(context.Background(), cutoff); err != nil {
				c.log.Warn("login history cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		if _, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil && c.auditRetentionDays > 0 {
		cutoff := c.now().AddDate(0, 0, -c.auditRetentionDays)
		if _, err := c.audit.PruneOlderThan(ctx, cutoff); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.users != nil && c.loginHistoryRetentionDays > 0 {
		cutoff := c.now().AddDate(0, 0, -c.loginHistoryRetentionDays)
		if _, err := c.users.PruneLoginHistory(ctx, cutoff); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

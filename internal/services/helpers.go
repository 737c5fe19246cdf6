package services

import (
	"context"
	"strings"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// normaliseEmail produces the canonical stored form of an email address.
// Registration and invitation creation both pass through here, so recipient
// matching on the stored value stays consistent.
func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// recordAudit logs the supplied entry while tolerating audit failures.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	_ = audit.Log(ctx, entry)
}

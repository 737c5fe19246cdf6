package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nvasquez/accounthub/internal/database/testutil"
	"github.com/nvasquez/accounthub/internal/models"
)

func TestLogValidatesAndPersists(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	ctx := context.Background()

	require.Error(t, svc.Log(ctx, AuditEntry{Result: "success"}))
	require.Error(t, svc.Log(ctx, AuditEntry{Action: "user.login"}))

	userID := "  user-1  "
	err = svc.Log(ctx, AuditEntry{
		UserID:    &userID,
		Action:    " user.login ",
		Resource:  "user-1",
		Result:    "success",
		IPAddress: "127.0.0.1",
		Metadata:  map[string]any{"method": "password"},
	})
	require.NoError(t, err)

	var row models.AuditLog
	require.NoError(t, db.First(&row).Error)
	require.Equal(t, "user.login", row.Action)
	require.NotNil(t, row.UserID)
	require.Equal(t, "user-1", *row.UserID)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(row.Metadata, &meta))
	require.Equal(t, "password", meta["method"])
}

func TestListFiltersAndPaginates(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Log(ctx, AuditEntry{Action: "invitation.create", Result: "success"}))
	}
	require.NoError(t, svc.Log(ctx, AuditEntry{Action: "invitation.create", Result: "failure"}))

	logs, total, err := svc.List(ctx, AuditListOptions{
		Filters: AuditFilters{Action: "invitation.create", Result: "success"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, logs, 3)

	logs, total, err = svc.List(ctx, AuditListOptions{
		Page:     2,
		PageSize: 2,
		Filters:  AuditFilters{Action: "invitation.create"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.Len(t, logs, 2)
}

func TestPruneOlderThanRemovesAgedRows(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Log(ctx, AuditEntry{Action: "user.login", Result: "success"}))
	require.NoError(t, svc.Log(ctx, AuditEntry{Action: "user.login", Result: "success"}))

	var first models.AuditLog
	require.NoError(t, db.First(&first).Error)

	old := time.Now().AddDate(0, 0, -120)
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("id = ?", first.ID).
		Update("created_at", old).Error)

	removed, err := svc.PruneOlderThan(ctx, time.Now().AddDate(0, 0, -90))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var remaining int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&remaining).Error)
	require.EqualValues(t, 1, remaining)
}

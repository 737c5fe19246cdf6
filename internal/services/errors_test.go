package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsUniqueConstraintError(t *testing.T) {
	require.False(t, isUniqueConstraintError(nil))

	require.True(t, isUniqueConstraintError(gorm.ErrDuplicatedKey))
	require.True(t, isUniqueConstraintError(fmt.Errorf("create: %w", gorm.ErrDuplicatedKey)))

	require.True(t, isUniqueConstraintError(&pgconn.PgError{Code: "23505"}))
	require.False(t, isUniqueConstraintError(&pgconn.PgError{Code: "23502"}))

	require.True(t, isUniqueConstraintError(&mysql.MySQLError{Number: 1062}))
	require.False(t, isUniqueConstraintError(&mysql.MySQLError{Number: 1048}))

	// SQLite surfaces constraint failures as strings.
	require.True(t, isUniqueConstraintError(errors.New("UNIQUE constraint failed: account_members.account_id, account_members.user_id")))
	require.True(t, isUniqueConstraintError(errors.New("Error 1062: Duplicate entry 'x' for key 'y'")))

	// Other constraint classes must not be mistaken for duplicates.
	require.False(t, isUniqueConstraintError(errors.New("NOT NULL constraint failed: invitations.account_id")))
	require.False(t, isUniqueConstraintError(errors.New("FOREIGN KEY constraint failed")))
}

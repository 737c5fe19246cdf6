package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nvasquez/accounthub/internal/database/testutil"
	"github.com/nvasquez/accounthub/internal/models"
	apperrors "github.com/nvasquez/accounthub/pkg/errors"
)

type accountFixture struct {
	users    *UserService
	accounts *AccountService
	db       *gorm.DB
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	auditSvc, err := NewAuditService(db)
	require.NoError(t, err)

	users, err := NewUserService(db, auditSvc)
	require.NoError(t, err)
	accounts, err := NewAccountService(db, auditSvc)
	require.NoError(t, err)

	return &accountFixture{users: users, accounts: accounts, db: db}
}

func (f *accountFixture) register(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "password1",
	})
	require.NoError(t, err)
	return user
}

func (f *accountFixture) ownedAccount(t *testing.T, user *models.User) *models.Account {
	t.Helper()
	var account models.Account
	require.NoError(t, f.db.First(&account, "owner_id = ?", user.ID).Error)
	return &account
}

func TestResolveRole(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	owner := f.register(t, "alice")
	member := f.register(t, "bob")
	stranger := f.register(t, "carol")
	account := f.ownedAccount(t, owner)

	_, err := f.accounts.AddMember(ctx, account.ID, member.ID, false)
	require.NoError(t, err)

	role, err := f.accounts.ResolveRole(ctx, account.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, RoleOwner, role)

	role, err = f.accounts.ResolveRole(ctx, account.ID, member.ID)
	require.NoError(t, err)
	require.Equal(t, RoleMember, role)

	role, err = f.accounts.ResolveRole(ctx, account.ID, stranger.ID)
	require.NoError(t, err)
	require.Equal(t, RoleNone, role)

	_, err = f.accounts.ResolveRole(ctx, "missing", owner.ID)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestGetEnforcesAccess(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	owner := f.register(t, "alice")
	stranger := f.register(t, "bob")
	account := f.ownedAccount(t, owner)

	got, role, err := f.accounts.Get(ctx, account.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, account.ID, got.ID)
	require.Equal(t, RoleOwner, role)

	_, _, err = f.accounts.Get(ctx, account.ID, stranger.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestListForUser(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	bobAccount := f.ownedAccount(t, bob)

	_, err := f.accounts.AddMember(ctx, bobAccount.ID, alice.ID, false)
	require.NoError(t, err)

	list, err := f.accounts.ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	roles := map[string]Role{}
	for _, entry := range list {
		roles[entry.Account.Name] = entry.Role
	}
	require.Equal(t, RoleOwner, roles["alice's Account"])
	require.Equal(t, RoleMember, roles["bob's Account"])
}

func TestAddMemberRejectsDuplicates(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	owner := f.register(t, "alice")
	bob := f.register(t, "bob")
	account := f.ownedAccount(t, owner)

	_, err := f.accounts.AddMember(ctx, account.ID, bob.ID, false)
	require.NoError(t, err)

	_, err = f.accounts.AddMember(ctx, account.ID, bob.ID, true)
	require.ErrorIs(t, err, ErrDuplicateMembership)

	var count int64
	require.NoError(t, f.db.Model(&models.AccountMember{}).
		Where("account_id = ? AND user_id = ?", account.ID, bob.ID).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestListMembers(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	owner := f.register(t, "alice")
	bob := f.register(t, "bob")
	stranger := f.register(t, "carol")
	account := f.ownedAccount(t, owner)

	_, err := f.accounts.AddMember(ctx, account.ID, bob.ID, false)
	require.NoError(t, err)

	// Any member may see the roster, not just admins.
	members, err := f.accounts.ListMembers(ctx, account.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	_, err = f.accounts.ListMembers(ctx, account.ID, stranger.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestRemoveMember(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	owner := f.register(t, "alice")
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")
	account := f.ownedAccount(t, owner)

	_, err := f.accounts.AddMember(ctx, account.ID, bob.ID, false)
	require.NoError(t, err)
	_, err = f.accounts.AddMember(ctx, account.ID, carol.ID, false)
	require.NoError(t, err)

	// Plain members may not remove anyone.
	err = f.accounts.RemoveMember(ctx, account.ID, bob.ID, carol.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	// The owner's membership is not removable.
	err = f.accounts.RemoveMember(ctx, account.ID, owner.ID, owner.ID)
	require.ErrorIs(t, err, ErrOwnerMembershipImmutable)

	require.NoError(t, f.accounts.RemoveMember(ctx, account.ID, owner.ID, bob.ID))

	err = f.accounts.RemoveMember(ctx, account.ID, owner.ID, bob.ID)
	require.ErrorIs(t, err, ErrMemberNotFound)
}

func TestDeleteAccount(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	owner := f.register(t, "alice")
	bob := f.register(t, "bob")
	account := f.ownedAccount(t, owner)

	_, err := f.accounts.AddMember(ctx, account.ID, bob.ID, false)
	require.NoError(t, err)

	// Only the owner may delete, admin membership is not enough.
	require.ErrorIs(t, f.accounts.Delete(ctx, account.ID, bob.ID), apperrors.ErrForbidden)

	require.NoError(t, f.accounts.Delete(ctx, account.ID, owner.ID))

	var members int64
	require.NoError(t, f.db.Model(&models.AccountMember{}).
		Where("account_id = ?", account.ID).Count(&members).Error)
	require.Zero(t, members)

	require.ErrorIs(t, f.accounts.Delete(ctx, account.ID, owner.ID), ErrAccountNotFound)
}

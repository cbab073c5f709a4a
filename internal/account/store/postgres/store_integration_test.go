//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ams/internal/account"
	"ams/internal/account/store/postgres"
	"ams/pkg/sentinel"
	"ams/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "users")
	s.Require().NoError(err)
}

func newUser(username string) *account.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &account.User{
		Username:     username,
		FamilyName:   "Tran",
		GivenName:    "Thi B",
		FullName:     "Tran Thi B",
		Email:        "b.tran@example.edu",
		Role:         account.RoleStaff,
		Active:       true,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *PostgresStoreSuite) TestSaveAndGetRoundtrip() {
	ctx := context.Background()
	want := newUser("staff01")
	s.Require().NoError(s.store.Save(ctx, want))

	got, err := s.store.Get(ctx, "staff01")
	s.Require().NoError(err)
	s.Equal(want.FullName, got.FullName)
	s.Equal(want.Role, got.Role)
	s.Equal(want.PasswordHash, got.PasswordHash)
	s.True(got.Active)
	s.False(got.MustChangePassword)
}

func (s *PostgresStoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), "ghost")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSaveUpserts() {
	ctx := context.Background()
	u := newUser("staff01")
	s.Require().NoError(s.store.Save(ctx, u))

	u.Role = account.RoleAdmin
	u.MustChangePassword = true
	u.UpdatedAt = time.Now().UTC()
	s.Require().NoError(s.store.Save(ctx, u))

	got, err := s.store.Get(ctx, "staff01")
	s.Require().NoError(err)
	s.Equal(account.RoleAdmin, got.Role)
	s.True(got.MustChangePassword)
}

func (s *PostgresStoreSuite) TestListOrdersByUsername() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, newUser("staff02")))
	s.Require().NoError(s.store.Save(ctx, newUser("admin01")))

	users, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(users, 2)
	s.Equal("admin01", users[0].Username)
	s.Equal("staff02", users[1].Username)
}

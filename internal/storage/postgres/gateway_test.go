package postgres

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"foundation_site/internal/domain"
	"foundation_site/internal/storage"
)

type GatewayTestSuite struct {
	suite.Suite
	ctx     context.Context
	mock    sqlmock.Sqlmock
	db      *sqlx.DB
	gateway *Gateway
}

func (s *GatewayTestSuite) SetupTest() {
	s.ctx = context.Background()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	s.Require().NoError(err)
	s.mock = mock
	s.db = sqlx.NewDb(mockDB, "postgres")
	s.gateway = NewGateway(s.db)
}

func (s *GatewayTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func TestGatewayTestSuite(t *testing.T) {
	suite.Run(t, new(GatewayTestSuite))
}

func (s *GatewayTestSuite) TestSelect_FiltersOrderAndRange() {
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "title", "slug", "created_at"}).
		AddRow("p1", "Well", "well", now)

	s.mock.ExpectQuery(`SELECT id, title, slug, created_at FROM projects WHERE status = $1 AND id = ANY($2) ORDER BY created_at DESC LIMIT $3 OFFSET $4`).
		WithArgs("published", pq.Array([]string{"p1", "p2"}), 10, 20).
		WillReturnRows(rows)

	q := storage.Query{Columns: []string{"id", "title", "slug", "created_at"}}.
		Where("status", "published").
		Filter("id", storage.OpIn, []string{"p1", "p2"}).
		Page(10, 20)

	var out []domain.Project
	s.Require().NoError(s.gateway.Select(s.ctx, "projects", q, &out))
	s.Require().Len(out, 1)
	s.Equal("Well", out[0].Title)
}

func (s *GatewayTestSuite) TestSelect_IsAndCustomOrder() {
	s.mock.ExpectQuery(`SELECT * FROM comments WHERE blog_id = $1 AND is_published IS TRUE ORDER BY created_at ASC`).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	q := storage.Query{}.Where("blog_id", "b1").Filter("is_published", storage.OpIs, true).OrderBy("created_at", false)

	var out []domain.Comment
	s.NoError(s.gateway.Select(s.ctx, "comments", q, &out))
	s.Empty(out)
}

func (s *GatewayTestSuite) TestSelect_RejectsBadIdentifiers() {
	var out []domain.Project
	err := s.gateway.Select(s.ctx, "projects; drop table admins", storage.Query{}, &out)
	s.True(errors.Is(err, domain.ErrValidation))

	err = s.gateway.Select(s.ctx, "projects", storage.Query{Columns: []string{"title)"}}, &out)
	s.True(errors.Is(err, domain.ErrValidation))

	err = s.gateway.Select(s.ctx, "projects", storage.Query{}, out)
	s.Error(err)
}

func (s *GatewayTestSuite) TestInsert_ReturnsID() {
	s.mock.ExpectQuery(`INSERT INTO messages (body, email, name) VALUES ($1, $2, $3) RETURNING id`).
		WithArgs("Hello", "a@b.org", "Ana").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("m1"))

	id, err := s.gateway.Insert(s.ctx, "messages", storage.Values{"name": "Ana", "email": "a@b.org", "body": "Hello"})
	s.NoError(err)
	s.Equal("m1", id)
}

func (s *GatewayTestSuite) TestInsert_UniqueViolationIsConstraint() {
	s.mock.ExpectQuery(`INSERT INTO projects (slug, title) VALUES ($1, $2) RETURNING id`).
		WithArgs("well", "Well").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := s.gateway.Insert(s.ctx, "projects", storage.Values{"title": "Well", "slug": "well"})
	s.True(errors.Is(err, domain.ErrConstraint))
}

func (s *GatewayTestSuite) TestInsert_EmptyRecordNeverQueries() {
	_, err := s.gateway.Insert(s.ctx, "projects", storage.Values{})
	s.True(errors.Is(err, domain.ErrValidation))
}

func (s *GatewayTestSuite) TestUpdate() {
	s.mock.ExpectExec(`UPDATE comments SET is_approved = $1 WHERE id = $2`).
		WithArgs(true, "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.gateway.Update(s.ctx, "comments", "c1", storage.Values{"is_approved": true}))
}

func (s *GatewayTestSuite) TestUpdate_MissingRowIsNotFound() {
	s.mock.ExpectExec(`UPDATE comments SET is_approved = $1 WHERE id = $2`).
		WithArgs(true, "c9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.gateway.Update(s.ctx, "comments", "c9", storage.Values{"is_approved": true})
	s.True(errors.Is(err, domain.ErrNotFound))
}

func (s *GatewayTestSuite) TestDelete_ConnectionLossIsTransport() {
	s.mock.ExpectExec(`DELETE FROM projects WHERE id = $1`).
		WithArgs("p1").
		WillReturnError(&net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")})

	err := s.gateway.Delete(s.ctx, "projects", "p1")
	s.True(errors.Is(err, domain.ErrTransport))
	s.True(domain.Retryable(err))
}

func (s *GatewayTestSuite) TestWithTransaction_CommitsAndRollsBack() {
	tm := NewTransactionManager(s.db)

	s.mock.ExpectBegin()
	s.mock.ExpectExec(`DELETE FROM admins WHERE id = $1`).WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		return s.gateway.Delete(ctx, "admins", "a1")
	})
	s.NoError(err)

	s.mock.ExpectBegin()
	s.mock.ExpectRollback()

	boom := errors.New("boom")
	err = tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		return tm.WithTransaction(ctx, func(context.Context) error { return boom })
	})
	s.ErrorIs(err, boom)
}

func (s *GatewayTestSuite) TestSelect_LockedInsideTransaction() {
	tm := NewTransactionManager(s.db)

	s.mock.ExpectBegin()
	s.mock.ExpectQuery(`SELECT id FROM admins WHERE role = $1 ORDER BY created_at DESC FOR UPDATE`).
		WithArgs(domain.RoleSuperAdmin).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1").AddRow("a2"))
	s.mock.ExpectCommit()

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		var supers []domain.Admin
		q := storage.Query{Columns: []string{"id"}}.Where("role", domain.RoleSuperAdmin).Locked()
		if err := s.gateway.Select(ctx, "admins", q, &supers); err != nil {
			return err
		}
		s.Len(supers, 2)
		return nil
	})
	s.NoError(err)
}

func (s *GatewayTestSuite) TestIncrement() {
	s.mock.ExpectQuery(`UPDATE blog_posts SET views = views + $1 WHERE id = $2 RETURNING views`).
		WithArgs(1, "b1").
		WillReturnRows(sqlmock.NewRows([]string{"views"}).AddRow(42))

	views, err := s.gateway.Increment(s.ctx, "blog_posts", "b1", "views", 1)
	s.NoError(err)
	s.Equal(int64(42), views)
}

func (s *GatewayTestSuite) TestIncrement_MissingRowIsNotFound() {
	s.mock.ExpectQuery(`UPDATE blog_posts SET views = views + $1 WHERE id = $2 RETURNING views`).
		WithArgs(1, "b9").
		WillReturnRows(sqlmock.NewRows([]string{"views"}))

	_, err := s.gateway.Increment(s.ctx, "blog_posts", "b9", "views", 1)
	s.True(errors.Is(err, domain.ErrNotFound))

	_, err = s.gateway.Increment(s.ctx, "blog_posts", "b9", "views; --", 1)
	s.True(errors.Is(err, domain.ErrValidation))
}

func (s *GatewayTestSuite) TestSerializationFailureIsTransport() {
	s.mock.ExpectExec(`DELETE FROM admins WHERE id = $1`).
		WithArgs("a1").
		WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})

	err := s.gateway.Delete(s.ctx, "admins", "a1")
	s.True(errors.Is(err, domain.ErrTransport))
}

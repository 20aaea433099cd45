//go:build integration

package postgres

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"foundation_site/internal/domain"
	"foundation_site/internal/storage"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
	gateway   *Gateway
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_content.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
	s.gateway = NewGateway(db)
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM comments")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM blog_posts")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM project_images")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM projects")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM admins")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) TestProject_DocumentRoundTrip() {
	input := domain.ProjectInput{
		Title:  "Forage de Puits",
		Slug:   "forage-de-puits",
		Status: domain.StatusPublished,
		Goals:  []string{"Clean water"},
		Content: domain.Document{
			{ID: "b1", Type: domain.BlockText, Content: &domain.TextContent{Heading: "Why", Text: "<p>Water</p>"}},
			{ID: "b2", Type: domain.BlockStats, Content: &domain.StatsContent{Stats: []domain.Stat{{Value: "12", Label: "wells"}}}},
		},
	}

	id, err := s.gateway.Insert(s.ctx, "projects", input.Values())
	s.Require().NoError(err)
	s.NotEmpty(id)

	var projects []domain.Project
	s.Require().NoError(s.gateway.Select(s.ctx, "projects", storage.Query{}.Where("id", id), &projects))
	s.Require().Len(projects, 1)
	s.Equal(input.Content, projects[0].Content)
	s.Equal(domain.StringList{"Clean water"}, projects[0].Goals)
}

func (s *PostgresIntegrationSuite) TestProject_DuplicateSlugIsConstraint() {
	values := domain.ProjectInput{Title: "A", Slug: "same", Status: domain.StatusDraft}.Values()

	_, err := s.gateway.Insert(s.ctx, "projects", values)
	s.Require().NoError(err)

	_, err = s.gateway.Insert(s.ctx, "projects", values)
	s.True(errors.Is(err, domain.ErrConstraint))
}

func (s *PostgresIntegrationSuite) TestComment_ForeignKeyIsConstraint() {
	_, err := s.gateway.Insert(s.ctx, "comments", storage.Values{
		"blog_id":      "00000000-0000-0000-0000-000000000000",
		"author_name":  "Ana",
		"author_email": "ana@example.org",
		"body":         "hello",
	})
	s.True(errors.Is(err, domain.ErrConstraint))
}

func (s *PostgresIntegrationSuite) TestUpdateAndDelete() {
	id, err := s.gateway.Insert(s.ctx, "admins", storage.Values{
		"user_id": "u1", "email": "root@example.org", "role": domain.RoleSuperAdmin,
	})
	s.Require().NoError(err)

	s.NoError(s.gateway.Update(s.ctx, "admins", id, storage.Values{"role": domain.RoleContentManager}))

	var admins []domain.Admin
	s.Require().NoError(s.gateway.Select(s.ctx, "admins", storage.Query{}.Where("role", domain.RoleContentManager), &admins))
	s.Len(admins, 1)

	s.NoError(s.gateway.Delete(s.ctx, "admins", id))
	s.True(errors.Is(s.gateway.Delete(s.ctx, "admins", id), domain.ErrNotFound))
}

func (s *PostgresIntegrationSuite) TestTransaction_RollsBack() {
	tm := NewTransactionManager(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := s.gateway.Insert(ctx, "admins", storage.Values{
			"user_id": "u2", "email": "two@example.org", "role": domain.RoleSuperAdmin,
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Error(err)

	var admins []domain.Admin
	s.Require().NoError(s.gateway.Select(s.ctx, "admins", storage.Query{}, &admins))
	s.Empty(admins)
}

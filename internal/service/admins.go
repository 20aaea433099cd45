package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"foundation_site/internal/domain"
	"foundation_site/internal/resource"
	"foundation_site/internal/storage"
)

const tableAdmins = "admins"

// ErrLastSuperAdmin is returned when a change would leave no super_admin.
var ErrLastSuperAdmin = fmt.Errorf("the last super_admin cannot be removed or demoted: %w", domain.ErrConstraint)

type AdminService struct {
	base
	admins  *resource.Resource[domain.Admin]
	gateway Gateway
	tx      TransactionManager
}

func NewAdminService(gateway Gateway, cache *resource.Cache, tx TransactionManager, notifier Notifier, logger *slog.Logger, opts ...resource.Option) *AdminService {
	if tx == nil {
		tx = directTransactions{}
	}
	return &AdminService{
		base:    newBase(notifier, logger, tableAdmins),
		admins:  resource.New[domain.Admin](tableAdmins, gateway, cache, logger, opts...),
		gateway: gateway,
		tx:      tx,
	}
}

// ResolveActor maps an authenticated identity to its back-office actor. An
// identity without an admin account is forbidden.
func (s *AdminService) ResolveActor(ctx context.Context, userID string) (*domain.Actor, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	admin, err := s.admins.First(ctx, storage.Query{}.Where("user_id", userID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("user %s has no admin account: %w", userID, domain.ErrForbidden)
	}
	if err != nil {
		return nil, err
	}
	return &domain.Actor{UserID: admin.UserID, Email: admin.Email, Role: admin.Role}, nil
}

func (s *AdminService) List(ctx context.Context, actor *domain.Actor) ([]domain.Admin, error) {
	if err := domain.Authorize(actor, domain.CapAdminsManage); err != nil {
		return nil, err
	}
	return s.admins.List(ctx, storage.Query{})
}

func (s *AdminService) Create(ctx context.Context, actor *domain.Actor, in domain.AdminInput) (string, error) {
	var id string
	op := operation{resource: tableAdmins, action: "create", done: "Admin added", cap: domain.CapAdminsManage}
	err := s.run(ctx, actor, op, func(ctx context.Context) error {
		if err := validateInput(in); err != nil {
			return err
		}
		var err error
		id, err = s.admins.Create(ctx, storage.Values{
			"user_id": in.UserID,
			"email":   in.Email,
			"name":    in.Name,
			"role":    in.Role,
		})
		return err
	})
	return id, err
}

func (s *AdminService) UpdateRole(ctx context.Context, actor *domain.Actor, id string, role domain.Role) error {
	op := operation{resource: tableAdmins, action: "update_role", done: "Role updated", cap: domain.CapAdminsManage}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		if !role.Valid() {
			return domain.Invalid("role", "unknown role %q", role)
		}
		return s.guarded(ctx, id, role != domain.RoleSuperAdmin, func(ctx context.Context) error {
			return s.admins.Update(ctx, id, storage.Values{"role": role})
		})
	})
}

func (s *AdminService) Delete(ctx context.Context, actor *domain.Actor, id string) error {
	op := operation{resource: tableAdmins, action: "delete", done: "Admin removed", cap: domain.CapAdminsManage}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		return s.guarded(ctx, id, true, func(ctx context.Context) error {
			return s.admins.Remove(ctx, id)
		})
	})
}

// superAdminGuard serializes guarded changes within this process. Row locks
// taken by the gateway cover other processes sharing the database.
var superAdminGuard sync.Mutex

// guarded runs mutate in a transaction after checking that it does not
// remove the last super_admin. The check reads the store directly, not the
// cache. The super_admin rows are locked before the target so concurrent
// removals queue behind each other in the same order.
func (s *AdminService) guarded(ctx context.Context, id string, removesSuper bool, mutate func(ctx context.Context) error) error {
	if id == "" {
		return domain.Invalid("id", "is required")
	}

	superAdminGuard.Lock()
	defer superAdminGuard.Unlock()

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var supers []domain.Admin
		if removesSuper {
			if err := s.gateway.Select(ctx, tableAdmins, superAdminsQuery(), &supers); err != nil {
				return err
			}
		}

		var target []domain.Admin
		if err := s.gateway.Select(ctx, tableAdmins, storage.Query{}.Where("id", id).Page(1, 0).Locked(), &target); err != nil {
			return err
		}
		if len(target) == 0 {
			return fmt.Errorf("admin %s: %w", id, domain.ErrNotFound)
		}

		if removesSuper && target[0].Role == domain.RoleSuperAdmin && len(supers) <= 1 {
			return ErrLastSuperAdmin
		}
		return mutate(ctx)
	})
	if err == nil {
		s.admins.Revalidate()
	}
	return err
}

func superAdminsQuery() storage.Query {
	return storage.Query{Columns: []string{"id"}}.Where("role", domain.RoleSuperAdmin).OrderBy("id", false).Locked()
}

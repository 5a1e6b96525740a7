package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/yacht-customization/internal/application/port"
	"github.com/garyjia/yacht-customization/internal/domain/entity"
	domainwf "github.com/garyjia/yacht-customization/internal/domain/workflow"
)

// DirectoryRepository mirrors the identity system's users and roles. It
// serves both port.RoleResolver and port.Directory.
type DirectoryRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDirectoryRepository creates a new user directory repository
func NewDirectoryRepository(db *DB, logger *zap.Logger) *DirectoryRepository {
	return &DirectoryRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertUser inserts or refreshes a user row
func (r *DirectoryRepository) UpsertUser(ctx context.Context, user *entity.User) error {
	query := `INSERT INTO users (id, full_name, email, lark_open_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name,
			email = excluded.email,
			lark_open_id = excluded.lark_open_id`

	_, err := r.db.executor(ctx).ExecContext(ctx, query, user.ID, user.FullName, user.Email, user.LarkOpenID)
	if err != nil {
		r.logger.Error("Failed to upsert user", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// AssignRole grants role to an existing user. Granting twice is a no-op.
func (r *DirectoryRepository) AssignRole(ctx context.Context, userID string, role entity.Role) error {
	if !role.IsValid() {
		return fmt.Errorf("%w: unknown role %q", domainwf.ErrInvalidState, role)
	}
	query := `INSERT INTO user_roles (user_id, role) VALUES (?, ?)
		ON CONFLICT(user_id, role) DO NOTHING`

	if _, err := r.db.executor(ctx).ExecContext(ctx, query, userID, role.String()); err != nil {
		r.logger.Error("Failed to assign role",
			zap.String("user_id", userID),
			zap.String("role", role.String()),
			zap.Error(err))
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// RolesOf returns the known roles of actorID. Unknown actors hold no roles.
func (r *DirectoryRepository) RolesOf(ctx context.Context, actorID string) (entity.RoleSet, error) {
	rows, err := r.db.executor(ctx).QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = ?`, actorID)
	if err != nil {
		r.logger.Error("Failed to query roles", zap.String("actor_id", actorID), zap.Error(err))
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return entity.ParseRoleSet(names...), nil
}

// GetUser retrieves a user by ID
func (r *DirectoryRepository) GetUser(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	err := r.db.executor(ctx).QueryRowContext(ctx,
		`SELECT id, full_name, email, lark_open_id FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.FullName, &user.Email, &user.LarkOpenID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, domainwf.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// FirstUserWithRole returns the earliest registered holder of role
func (r *DirectoryRepository) FirstUserWithRole(ctx context.Context, role entity.Role) (*entity.User, error) {
	query := `SELECT u.id, u.full_name, u.email, u.lark_open_id
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		WHERE ur.role = ?
		ORDER BY u.created_at ASC, u.id ASC
		LIMIT 1`

	var user entity.User
	err := r.db.executor(ctx).QueryRowContext(ctx, query, role.String()).
		Scan(&user.ID, &user.FullName, &user.Email, &user.LarkOpenID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find user by role", zap.String("role", role.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to find user by role: %w", err)
	}
	return &user, nil
}

var (
	_ port.RoleResolver = (*DirectoryRepository)(nil)
	_ port.Directory    = (*DirectoryRepository)(nil)
)

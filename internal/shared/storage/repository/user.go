package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"craftbid/internal/shared/model"
	"craftbid/internal/shared/storagetypes"
)

const userColumns = `id, name, email, password_hash, google_id, avatar,
	email_verified_at, verification_email_sent_at, created_at, updated_at`

// CreateUser 创建用户及其角色
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.insertUser(ctx, tx, user)
	})
}

// CreateArtisanUser 在同一事务中创建用户和手艺人档案
func (s *Store) CreateArtisanUser(ctx context.Context, user *model.User, profile *model.ArtisanProfile) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertUser(ctx, tx, user); err != nil {
			return err
		}
		return s.insertArtisan(ctx, tx, profile)
	})
}

func (s *Store) insertUser(ctx context.Context, tx *sql.Tx, user *model.User) error {
	_, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`),
		user.ID, user.Name, user.Email, user.PasswordHash,
		nullableString(user.GoogleID), nullableString(user.Avatar),
		nullableTime(user.EmailVerifiedAt), nullableTime(user.VerificationEmailSentAt),
		utc(user.CreatedAt), utc(user.UpdatedAt),
	)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, storagetypes.ErrDuplicate)
		}
		return err
	}

	for _, role := range user.Roles.List() {
		if err := s.insertRole(ctx, tx, user.ID, role); err != nil {
			return err
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *Store) insertRole(ctx context.Context, ex execer, userID string, role model.Role) error {
	_, err := ex.ExecContext(ctx, s.rebind(
		`INSERT INTO user_roles (user_id, role, created_at) VALUES ($1, $2, $3) `+
			s.dialect.OnConflictDoNothing("user_id", "role")),
		userID, string(role), utc(time.Now()),
	)
	return err
}

// AssignRole 为用户追加角色（已存在时忽略）
func (s *Store) AssignRole(ctx context.Context, userID string, role model.Role) error {
	return s.insertRole(ctx, s.db, userID, role)
}

// GetUserByID 通过 ID 查找用户
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, `id = $1`, id)
}

// GetUserByEmail 通过邮箱查找用户
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, `email = $1`, email)
}

// GetUserByGoogleID 通过 Google 账号 ID 查找用户
func (s *Store) GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return s.getUser(ctx, `google_id = $1`, googleID)
}

func (s *Store) getUser(ctx context.Context, cond string, arg interface{}) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE `+cond), arg)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	roles, err := s.listRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	return user, nil
}

func (s *Store) listRoles(ctx context.Context, userID string) (model.RoleSet, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT role FROM user_roles WHERE user_id = $1`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := model.NewRoleSet()
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles[model.Role(role)] = struct{}{}
	}
	return roles, rows.Err()
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                         model.User
		googleID, avatar          sql.NullString
		emailVerifiedAt, mailSent sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &googleID, &avatar,
		&emailVerifiedAt, &mailSent, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.GoogleID = stringPtr(googleID)
	u.Avatar = stringPtr(avatar)
	u.EmailVerifiedAt = timePtr(emailVerifiedAt)
	u.VerificationEmailSentAt = timePtr(mailSent)
	return &u, nil
}

// LinkGoogleAccount 绑定 Google 账号，avatar 为 nil 时保留原头像
func (s *Store) LinkGoogleAccount(ctx context.Context, userID, googleID string, avatar *string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET google_id = $1, avatar = COALESCE($2, avatar), updated_at = $3 WHERE id = $4`),
		googleID, nullableString(avatar), utc(time.Now()), userID,
	)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("google account %s: %w", googleID, storagetypes.ErrDuplicate)
		}
		return err
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return storagetypes.ErrNotFound
	}
	return nil
}

// MarkEmailVerified 标记邮箱已验证；已验证过时不覆盖原时间并返回 false
func (s *Store) MarkEmailVerified(ctx context.Context, userID string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET email_verified_at = $1, updated_at = $2
		 WHERE id = $3 AND email_verified_at IS NULL`),
		utc(at), utc(at), userID,
	)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows > 0 {
		return true, nil
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, storagetypes.ErrNotFound
	}
	return false, nil
}

// MarkVerificationEmailSent 记录验证邮件发送时间
func (s *Store) MarkVerificationEmailSent(ctx context.Context, userID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET verification_email_sent_at = $1, updated_at = $2 WHERE id = $3`),
		utc(at), utc(at), userID,
	)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return storagetypes.ErrNotFound
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"craftbid/internal/shared/model"
	"craftbid/internal/shared/storage/dbutil"
	"craftbid/internal/shared/storagetypes"
)

const artisanColumns = `id, user_id, business_name, speciality, location, bio,
	status, id_verification_status, id_verification_pending_at, id_verified_at,
	verification_rejection_reason, id_document_front_path, id_document_back_path,
	created_at, updated_at, deleted_at`

// CreateArtisan 创建手艺人档案，同一用户重复建档返回 ErrDuplicate
func (s *Store) CreateArtisan(ctx context.Context, profile *model.ArtisanProfile) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.insertArtisan(ctx, tx, profile)
	})
}

func (s *Store) insertArtisan(ctx context.Context, tx *sql.Tx, p *model.ArtisanProfile) error {
	_, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO artisans (`+artisanColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`),
		p.ID, p.UserID, p.BusinessName, p.Speciality, p.Location, p.Bio,
		string(p.Status), string(p.IDVerificationStatus),
		nullableTime(p.IDVerificationPendingAt), nullableTime(p.IDVerifiedAt),
		nullableString(p.RejectionReason),
		nullableString(p.IDDocumentFrontPath), nullableString(p.IDDocumentBackPath),
		utc(p.CreatedAt), utc(p.UpdatedAt), nullableTime(p.DeletedAt),
	)
	if err != nil && s.dialect.IsUniqueViolation(err) {
		return fmt.Errorf("artisan profile for user %s: %w", p.UserID, storagetypes.ErrDuplicate)
	}
	return err
}

// GetArtisan 通过 ID 获取未删除的档案
func (s *Store) GetArtisan(ctx context.Context, id string) (*model.ArtisanProfile, error) {
	return s.getArtisan(ctx, `id = $1`, id)
}

// GetArtisanByUserID 通过用户 ID 获取未删除的档案
func (s *Store) GetArtisanByUserID(ctx context.Context, userID string) (*model.ArtisanProfile, error) {
	return s.getArtisan(ctx, `user_id = $1`, userID)
}

func (s *Store) getArtisan(ctx context.Context, cond string, arg interface{}) (*model.ArtisanProfile, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+artisanColumns+` FROM artisans WHERE `+cond+` AND deleted_at IS NULL`), arg)
	p, err := scanArtisan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// ListArtisans 按条件列出未删除的档案，按进入 pending 的时间（无则按创建时间）升序
func (s *Store) ListArtisans(ctx context.Context, filter storagetypes.ArtisanFilter) ([]*model.ArtisanProfile, error) {
	var where dbutil.Where
	where.Add(`deleted_at IS NULL`)
	if filter.IDVerificationStatus != "" {
		where.Add(`id_verification_status = ?`, string(filter.IDVerificationStatus))
	}
	if filter.Status != "" {
		where.Add(`status = ?`, string(filter.Status))
	}
	if !filter.PendingBefore.IsZero() {
		where.Add(`id_verification_pending_at IS NOT NULL`)
		where.Add(`id_verification_pending_at <= ?`, utc(filter.PendingBefore))
		if c := filter.After; c != nil {
			at := utc(c.PendingAt)
			where.Add(`(id_verification_pending_at > ? OR (id_verification_pending_at = ? AND id > ?))`, at, at, c.ID)
		}
	}

	suffix := ` ORDER BY COALESCE(id_verification_pending_at, created_at) ASC, id ASC`
	var suffixArgs []interface{}
	if filter.Limit > 0 {
		suffix += ` LIMIT ? OFFSET ?`
		suffixArgs = append(suffixArgs, filter.Limit, filter.Offset)
	}

	query, args := where.Build(s.dialect, `SELECT `+artisanColumns+` FROM artisans`, suffix, suffixArgs...)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*model.ArtisanProfile
	for rows.Next() {
		p, err := scanArtisan(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// UpdateArtisanDetails 更新描述性字段
func (s *Store) UpdateArtisanDetails(ctx context.Context, p *model.ArtisanProfile) error {
	result, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE artisans SET business_name = $1, speciality = $2, location = $3, bio = $4, updated_at = $5
		 WHERE id = $6 AND deleted_at IS NULL`),
		p.BusinessName, p.Speciality, p.Location, p.Bio, utc(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return storagetypes.ErrNotFound
	}
	return nil
}

// UpdateArtisanState 条件更新审核与账户状态
//
// WHERE 子句同时匹配期望的审核状态和账户状态，任何并发修改都会使本次
// 更新落空：行仍存在则返回 ErrConflict，已删除或不存在返回 ErrNotFound。
func (s *Store) UpdateArtisanState(ctx context.Context, p *model.ArtisanProfile, expect storagetypes.ArtisanGuard) error {
	result, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE artisans SET
			status = $1,
			id_verification_status = $2,
			id_verification_pending_at = $3,
			id_verified_at = $4,
			verification_rejection_reason = $5,
			id_document_front_path = $6,
			id_document_back_path = $7,
			updated_at = $8
		 WHERE id = $9 AND deleted_at IS NULL
		   AND id_verification_status = $10 AND status = $11`),
		string(p.Status), string(p.IDVerificationStatus),
		nullableTime(p.IDVerificationPendingAt), nullableTime(p.IDVerifiedAt),
		nullableString(p.RejectionReason),
		nullableString(p.IDDocumentFrontPath), nullableString(p.IDDocumentBackPath),
		utc(p.UpdatedAt),
		p.ID, string(expect.IDVerificationStatus), string(expect.Status),
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	current, err := s.GetArtisan(ctx, p.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return storagetypes.ErrNotFound
	}
	return fmt.Errorf("artisan %s is %s/%s, expected %s/%s: %w",
		p.ID, current.IDVerificationStatus, current.Status,
		expect.IDVerificationStatus, expect.Status, storagetypes.ErrConflict)
}

// SoftDeleteArtisan 软删除档案
func (s *Store) SoftDeleteArtisan(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE artisans SET deleted_at = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`),
		utc(at), utc(at), id,
	)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return storagetypes.ErrNotFound
	}
	return nil
}

func scanArtisan(row rowScanner) (*model.ArtisanProfile, error) {
	var (
		p                                model.ArtisanProfile
		status, verification             string
		pendingAt, verifiedAt, deletedAt sql.NullTime
		reason, front, back              sql.NullString
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.BusinessName, &p.Speciality, &p.Location, &p.Bio,
		&status, &verification, &pendingAt, &verifiedAt,
		&reason, &front, &back,
		&p.CreatedAt, &p.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	p.Status = model.ArtisanStatus(status)
	p.IDVerificationStatus = model.IDVerificationStatus(verification)
	p.IDVerificationPendingAt = timePtr(pendingAt)
	p.IDVerifiedAt = timePtr(verifiedAt)
	p.DeletedAt = timePtr(deletedAt)
	p.RejectionReason = stringPtr(reason)
	p.IDDocumentFrontPath = stringPtr(front)
	p.IDDocumentBackPath = stringPtr(back)
	return &p, nil
}

package repository

import (
	"context"
	"database/sql"

	"craftbid/internal/shared/model"
)

// RecordVerificationEvent 写入审核审计记录
func (s *Store) RecordVerificationEvent(ctx context.Context, e *model.VerificationEvent) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO verification_audit (id, profile_id, user_id, event, actor_id, from_status, to_status, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`),
		e.ID, e.ProfileID, e.UserID, string(e.Event), nullableString(e.ActorID),
		string(e.FromStatus), string(e.ToStatus), nullableString(e.Reason), utc(e.Timestamp),
	)
	return err
}

// ListVerificationEvents 按时间顺序返回档案的审计记录
func (s *Store) ListVerificationEvents(ctx context.Context, profileID string) ([]*model.VerificationEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, profile_id, user_id, event, actor_id, from_status, to_status, reason, created_at
		 FROM verification_audit WHERE profile_id = $1 ORDER BY created_at ASC, id ASC`), profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.VerificationEvent
	for rows.Next() {
		var (
			e               model.VerificationEvent
			event, from, to string
			actor, reason   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.UserID, &event, &actor,
			&from, &to, &reason, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Event = model.VerificationEventType(event)
		e.FromStatus = model.IDVerificationStatus(from)
		e.ToStatus = model.IDVerificationStatus(to)
		e.ActorID = stringPtr(actor)
		e.Reason = stringPtr(reason)
		events = append(events, &e)
	}
	return events, rows.Err()
}

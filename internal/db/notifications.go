package db

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/sudo-init-do/lexhub/internal/engagement"
)

const notificationColumnsSQL = "id, recipient_id, recipient_role, event, subject, subject_id, created_at, read_at"

func (s *Store) CreateNotification(ctx context.Context, n Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if _, err := s.db.Exec(ctx,
		"INSERT INTO notifications ("+notificationColumnsSQL+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		n.ID, n.RecipientID, n.RecipientRole, n.Event, n.Subject, n.SubjectID, n.CreatedAt, n.ReadAt,
	); err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// ListNotifications returns the recipient's notifications newest first.
func (s *Store) ListNotifications(ctx context.Context, recipient engagement.Actor, unreadOnly bool) ([]Notification, error) {
	sb := psql.Select(notificationColumnsSQL).From("notifications").
		Where("recipient_id = ?", recipient.ID).
		Where("recipient_role = ?", recipient.Role).
		OrderBy("created_at DESC", "id")
	if unreadOnly {
		sb = sb.Where("read_at IS NULL")
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building notification query: %w", err)
	}
	out := []Notification{}
	if err := pgxscan.Select(ctx, s.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("scanning notifications: %w", err)
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, recipient engagement.Actor, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, $4) WHERE id = $1 AND recipient_id = $2 AND recipient_role = $3`,
		id, recipient.ID, recipient.Role, s.now(),
	)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("db.mark_notification_read", "notification", id)
	}
	return nil
}

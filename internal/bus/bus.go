// Package bus is the append-only notification log the dashboard polls.
// Delivery is at-least-once for a poller that remembers the last id it
// saw; there is no push path by design.
package bus

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/AdvitDeepak/local-recall/internal/model"
	appErr "github.com/AdvitDeepak/local-recall/internal/pkg/errors"
)

type Bus struct {
	db *sql.DB
}

func New(db *sql.DB) *Bus {
	return &Bus{db: db}
}

func (b *Bus) Publish(ctx context.Context, kind model.NotificationKind, message string) (int64, error) {
	data := map[string]interface{}{
		"kind":    string(kind),
		"message": message,
		"ctime":   time.Now().UnixMilli(),
		"read":    0,
	}
	sqlStr, args, err := builder.BuildInsert("notifications", []map[string]interface{}{data})
	if err != nil {
		return 0, err
	}
	result, err := b.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// List returns notifications with id > sinceID in ascending id order.
func (b *Bus) List(ctx context.Context, sinceID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	where := map[string]interface{}{
		"id >":     sinceID,
		"_orderby": "id asc",
		"_limit":   []uint{0, uint(limit)},
	}
	if unreadOnly {
		where["read"] = 0
	}
	sqlStr, args, err := builder.BuildSelect("notifications", where,
		[]string{"id", "kind", "message", "ctime", "read"})
	if err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Notification
	for rows.Next() {
		var item model.Notification
		var kind string
		var read int
		if err := rows.Scan(&item.ID, &kind, &item.Message, &item.Ctime, &read); err != nil {
			return nil, err
		}
		item.Kind = model.NotificationKind(kind)
		item.Read = read != 0
		items = append(items, item)
	}
	return items, rows.Err()
}

func (b *Bus) MarkRead(ctx context.Context, id int64) error {
	sqlStr, args, err := builder.BuildUpdate("notifications",
		map[string]interface{}{"id": id},
		map[string]interface{}{"read": 1})
	if err != nil {
		return err
	}
	result, err := b.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (b *Bus) MarkAllRead(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, "UPDATE notifications SET read = 1 WHERE read = 0")
	return err
}

// Prune keeps the newest keep rows so the log stays bounded.
func (b *Bus) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	result, err := b.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE id NOT IN (SELECT id FROM notifications ORDER BY id DESC LIMIT ?)", keep)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

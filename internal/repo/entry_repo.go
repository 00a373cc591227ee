package repo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/AdvitDeepak/local-recall/internal/model"
	appErr "github.com/AdvitDeepak/local-recall/internal/pkg/errors"
)

var entryFields = []string{"id", "content", "source", "tags", "embed_status", "ctime"}

type EntryRepo struct {
	db *sql.DB
}

func NewEntryRepo(db *sql.DB) *EntryRepo {
	return &EntryRepo{db: db}
}

func (r *EntryRepo) Create(ctx context.Context, entry *model.Entry) error {
	if entry.Ctime == 0 {
		entry.Ctime = time.Now().UnixMilli()
	}
	if entry.EmbedStatus == "" {
		entry.EmbedStatus = model.EmbedStatusPending
	}
	data := map[string]interface{}{
		"content":      entry.Text,
		"source":       string(entry.Source),
		"tags":         joinTags(entry.Tags),
		"embed_status": string(entry.EmbedStatus),
		"ctime":        entry.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("entries", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

func (r *EntryRepo) GetByID(ctx context.Context, id int64) (*model.Entry, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildSelect("entries", where, entryFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	entry, err := scanEntry(rows)
	if err != nil {
		return nil, err
	}
	return entry, rows.Err()
}

// ListPending returns the oldest pending entries, up to limit.
func (r *EntryRepo) ListPending(ctx context.Context, limit int) ([]model.Entry, error) {
	where := map[string]interface{}{
		"embed_status": string(model.EmbedStatusPending),
		"_orderby":     "id asc",
		"_limit":       []uint{0, uint(limit)},
	}
	return r.list(ctx, where)
}

func (r *EntryRepo) List(ctx context.Context, filter model.EntryFilter) ([]model.Entry, error) {
	where := map[string]interface{}{
		"_orderby": "id desc",
	}
	if filter.Source != "" {
		where["source"] = string(filter.Source)
	}
	if filter.Tag != "" {
		where["tags like"] = "%" + filter.Tag + "%"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	where["_limit"] = []uint{0, uint(limit)}
	return r.list(ctx, where)
}

func (r *EntryRepo) ListByIDs(ctx context.Context, ids []int64) ([]model.Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		"SELECT id, content, source, tags, embed_status, ctime FROM entries WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// UpdateStatusFrom transitions an entry's embed status with a guard on
// the current value, keeping transitions monotonic even if a stale
// worker retries. Returns false when the guard did not match.
func (r *EntryRepo) UpdateStatusFrom(ctx context.Context, id int64, from, to model.EmbedStatus) (bool, error) {
	where := map[string]interface{}{
		"id":           id,
		"embed_status": string(from),
	}
	update := map[string]interface{}{
		"embed_status": string(to),
	}
	sqlStr, args, err := builder.BuildUpdate("entries", where, update)
	if err != nil {
		return false, err
	}
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RequeueFailed flips up to limit failed entries back to pending and
// returns their IDs so the caller can re-enqueue them.
func (r *EntryRepo) RequeueFailed(ctx context.Context, limit int) ([]int64, error) {
	where := map[string]interface{}{
		"embed_status": string(model.EmbedStatusFailed),
		"_orderby":     "id asc",
		"_limit":       []uint{0, uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("entries", where, []string{"id"})
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, err := r.UpdateStatusFrom(ctx, id, model.EmbedStatusFailed, model.EmbedStatusPending); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// RequeueAll flips every entry back to pending, for a full re-embed
// after the embedding model changes.
func (r *EntryRepo) RequeueAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE entries SET embed_status = ? WHERE embed_status != ?",
		string(model.EmbedStatusPending), string(model.EmbedStatusPending))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete removes the entry row. Cascading the vector record and index
// slot is the caller's job.
func (r *EntryRepo) Delete(ctx context.Context, id int64) error {
	sqlStr, args, err := builder.BuildDelete("entries", map[string]interface{}{"id": id})
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
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

func (r *EntryRepo) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM entries")
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *EntryRepo) Counts(ctx context.Context) (*model.EntryCounts, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT embed_status, COUNT(*) FROM entries GROUP BY embed_status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := &model.EntryCounts{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts.Total += n
		switch model.EmbedStatus(status) {
		case model.EmbedStatusPending:
			counts.Pending = n
		case model.EmbedStatusEmbedded:
			counts.Embedded = n
		case model.EmbedStatusFailed:
			counts.Failed = n
		}
	}
	return counts, rows.Err()
}

func (r *EntryRepo) list(ctx context.Context, where map[string]interface{}) ([]model.Entry, error) {
	sqlStr, args, err := builder.BuildSelect("entries", where, entryFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]model.Entry, error) {
	var entries []model.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (*model.Entry, error) {
	var entry model.Entry
	var source, tags, status string
	if err := rows.Scan(&entry.ID, &entry.Text, &source, &tags, &status, &entry.Ctime); err != nil {
		return nil, err
	}
	entry.Source = model.SourceKind(source)
	entry.Tags = splitTags(tags)
	entry.EmbedStatus = model.EmbedStatus(status)
	return &entry, nil
}

func joinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	return strings.Join(cleaned, ",")
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/AdvitDeepak/local-recall/internal/model"
)

// VectorRepo persists vector records so the in-memory index can be
// rebuilt after a restart without re-embedding anything.
type VectorRepo struct {
	db *sql.DB
}

func NewVectorRepo(db *sql.DB) *VectorRepo {
	return &VectorRepo{db: db}
}

func (r *VectorRepo) Save(ctx context.Context, rec *model.VectorRecord) error {
	blob, err := json.Marshal(rec.Embedding)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"entry_id":   rec.EntryID,
		"embedding":  blob,
		"model_name": rec.ModelName,
		"dim":        rec.Dim,
		"ctime":      rec.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("entry_vectors", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr = strings.Replace(sqlStr, "INSERT INTO", "INSERT OR REPLACE INTO", 1)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *VectorRepo) Delete(ctx context.Context, entryID int64) error {
	sqlStr, args, err := builder.BuildDelete("entry_vectors", map[string]interface{}{"entry_id": entryID})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *VectorRepo) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM entry_vectors")
	return err
}

func (r *VectorRepo) LoadAll(ctx context.Context) ([]model.VectorRecord, error) {
	sqlStr, args, err := builder.BuildSelect("entry_vectors", map[string]interface{}{"_orderby": "entry_id asc"},
		[]string{"entry_id", "embedding", "model_name", "dim", "ctime"})
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.VectorRecord
	for rows.Next() {
		var rec model.VectorRecord
		var blob []byte
		if err := rows.Scan(&rec.EntryID, &blob, &rec.ModelName, &rec.Dim, &rec.Ctime); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(blob, &rec.Embedding); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *VectorRepo) Count(ctx context.Context) (int64, error) {
	row := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entry_vectors")
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

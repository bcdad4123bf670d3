package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"mindloop/internal/chatmodel"
)

// Postgres is a pgvector-backed Store, grounded on a pgVector client
// (postgres_vector.go): one table per collection instead of a single
// shared "embeddings" table, since this Store's contract is
// collection-parametric.
type Postgres struct {
	pool   *pgxpool.Pool
	dim    int
	metric string

	mu      sync.Mutex
	created map[string]bool
}

var collectionNamePattern = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// NewPostgres opens a pgxpool against dsn. The pool is exposed so the
// caller can close it during shutdown.
func NewPostgres(ctx context.Context, dsn string, dim int, metric string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: pgxpool connect: %v", chatmodel.ErrFatalInit, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: pgxpool ping: %v", chatmodel.ErrFatalInit, err)
	}
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: create vector extension: %v", chatmodel.ErrFatalInit, err)
	}
	return &Postgres{pool: pool, dim: dim, metric: strings.ToLower(strings.TrimSpace(metric)), created: map[string]bool{}}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func tableName(collection string) string {
	return "vs_" + collectionNamePattern.ReplaceAllString(collection, "_")
}

func (p *Postgres) GetOrCreateCollection(ctx context.Context, name string, _ map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.created[name] {
		return nil
	}
	vecType := "vector"
	if p.dim > 0 {
		vecType = fmt.Sprintf("vector(%d)", p.dim)
	}
	stmt := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  vec %s,
  document TEXT NOT NULL DEFAULT '',
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb
);`, tableName(name), vecType)
	if _, err := p.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("%w: create collection table: %v", chatmodel.ErrTransient, err)
	}
	p.created[name] = true
	return nil
}

func (p *Postgres) opAndScore() (op, scoreExpr string) {
	switch p.metric {
	case "l2", "euclidean":
		return "<->", "-(vec <-> $1::vector)"
	case "ip", "dot":
		return "<#>", "-(vec <#> $1::vector)"
	default:
		return "<=>", "1 - (vec <=> $1::vector)"
	}
}

func (p *Postgres) Add(ctx context.Context, collection string, req AddRequest) error {
	if err := p.GetOrCreateCollection(ctx, collection, nil); err != nil {
		return err
	}
	table := tableName(collection)
	for i, id := range req.IDs {
		var doc string
		if i < len(req.Documents) {
			doc = req.Documents[i]
		}
		meta := map[string]any{}
		if i < len(req.Metadatas) && req.Metadatas[i] != nil {
			meta = req.Metadatas[i]
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("%w: marshal metadata: %v", chatmodel.ErrParse, err)
		}
		stmt := fmt.Sprintf(`
INSERT INTO %s(id, vec, document, metadata) VALUES($1, $2::vector, $3, $4)
ON CONFLICT (id) DO UPDATE SET vec=EXCLUDED.vec, document=EXCLUDED.document, metadata=EXCLUDED.metadata`, table)
		if _, err := p.pool.Exec(ctx, stmt, id, toVectorLiteral(req.Embeddings[i]), doc, metaJSON); err != nil {
			return fmt.Errorf("%w: pgvector upsert: %v", chatmodel.ErrTransient, err)
		}
	}
	return nil
}

func (p *Postgres) Query(ctx context.Context, collection string, embedding []float32, n int, where map[string]any) (QueryResult, error) {
	if n <= 0 {
		n = 10
	}
	op, scoreExpr := p.opAndScore()
	whereClause := ""
	args := []any{toVectorLiteral(embedding), n}
	if len(where) > 0 {
		filterJSON, err := json.Marshal(where)
		if err != nil {
			return QueryResult{}, fmt.Errorf("%w: marshal filter: %v", chatmodel.ErrParse, err)
		}
		whereClause = "WHERE metadata @> $3"
		args = append(args, filterJSON)
	}
	stmt := fmt.Sprintf(`SELECT id, document, metadata, %s AS score FROM %s %s ORDER BY vec %s $1::vector LIMIT $2`,
		scoreExpr, tableName(collection), whereClause, op)
	rows, err := p.pool.Query(ctx, stmt, args...)
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: pgvector query: %v", chatmodel.ErrTransient, err)
	}
	defer rows.Close()
	res := QueryResult{}
	for rows.Next() {
		var id, doc string
		var metaJSON []byte
		var score float64
		if err := rows.Scan(&id, &doc, &metaJSON, &score); err != nil {
			return QueryResult{}, fmt.Errorf("%w: scan query row: %v", chatmodel.ErrParse, err)
		}
		meta := map[string]any{}
		_ = json.Unmarshal(metaJSON, &meta)
		res.IDs = append(res.IDs, id)
		res.Documents = append(res.Documents, doc)
		res.Metadatas = append(res.Metadatas, meta)
		res.Distances = append(res.Distances, float32(1-score))
	}
	return res, rows.Err()
}

func (p *Postgres) Get(ctx context.Context, collection string, ids []string, where map[string]any, limit int) (GetResult, error) {
	res := GetResult{}
	table := tableName(collection)
	if len(ids) > 0 {
		stmt := fmt.Sprintf(`SELECT id, document, metadata FROM %s WHERE id = ANY($1)`, table)
		rows, err := p.pool.Query(ctx, stmt, ids)
		if err != nil {
			return res, fmt.Errorf("%w: pgvector get by id: %v", chatmodel.ErrTransient, err)
		}
		defer rows.Close()
		return scanGetRows(rows, res)
	}
	if limit <= 0 {
		limit = 100
	}
	whereClause := ""
	args := []any{limit}
	if len(where) > 0 {
		filterJSON, err := json.Marshal(where)
		if err != nil {
			return res, fmt.Errorf("%w: marshal filter: %v", chatmodel.ErrParse, err)
		}
		whereClause = "WHERE metadata @> $2"
		args = append(args, filterJSON)
	}
	stmt := fmt.Sprintf(`SELECT id, document, metadata FROM %s %s LIMIT $1`, table, whereClause)
	rows, err := p.pool.Query(ctx, stmt, args...)
	if err != nil {
		return res, fmt.Errorf("%w: pgvector scan: %v", chatmodel.ErrTransient, err)
	}
	defer rows.Close()
	return scanGetRows(rows, res)
}

func scanGetRows(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}, res GetResult) (GetResult, error) {
	for rows.Next() {
		var id, doc string
		var metaJSON []byte
		if err := rows.Scan(&id, &doc, &metaJSON); err != nil {
			return res, fmt.Errorf("%w: scan get row: %v", chatmodel.ErrParse, err)
		}
		meta := map[string]any{}
		_ = json.Unmarshal(metaJSON, &meta)
		res.IDs = append(res.IDs, id)
		res.Documents = append(res.Documents, doc)
		res.Metadatas = append(res.Metadatas, meta)
	}
	return res, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, collection string, ids []string, where map[string]any) error {
	table := tableName(collection)
	if len(ids) > 0 {
		if _, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, table), ids); err != nil {
			return fmt.Errorf("%w: pgvector delete by id: %v", chatmodel.ErrTransient, err)
		}
		return nil
	}
	filterJSON, err := json.Marshal(where)
	if err != nil {
		return fmt.Errorf("%w: marshal filter: %v", chatmodel.ErrParse, err)
	}
	if _, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE metadata @> $1`, table), filterJSON); err != nil {
		return fmt.Errorf("%w: pgvector delete by filter: %v", chatmodel.ErrTransient, err)
	}
	return nil
}

func (p *Postgres) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, tableName(collection))).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: pgvector count: %v", chatmodel.ErrTransient, err)
	}
	return n, nil
}

func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", x)
	}
	b.WriteByte(']')
	return b.String()
}

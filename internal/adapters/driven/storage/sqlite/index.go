package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/imgsearch/internal/adapters/driven/search/local"
	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
)

// searchIndex implements driven.SearchIndex with exact cosine k-NN over stored vectors.
type searchIndex struct {
	store *Store
}

var _ driven.SearchIndex = (*searchIndex)(nil)

// CreateIndex records a new index and its schema.
func (s *searchIndex) CreateIndex(ctx context.Context, name string, schema domain.IndexSchema) error {
	body, err := schema.Body()
	if err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO indexes (name, schema, dimensions, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, string(body), schema.VectorDimension(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrIndexExists, name)
	}
	return nil
}

// Bulk stores the payload's documents in a single transaction.
// Documents for unknown indexes or with the wrong dimension are rejected individually.
func (s *searchIndex) Bulk(ctx context.Context, payload []byte) (*driven.BulkResponse, error) {
	actions, err := local.ParseBulk(payload)
	if err != nil {
		return nil, err
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning bulk: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO images (index_name, doc_id, image_id, image_name, relative_path, embedding, exif)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(index_name, doc_id) DO UPDATE SET
			image_id = excluded.image_id,
			image_name = excluded.image_name,
			relative_path = excluded.relative_path,
			embedding = excluded.embedding,
			exif = excluded.exif
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing bulk: %w", err)
	}
	defer stmt.Close()

	dims := make(map[string]int)
	rec := local.NewBulkRecorder()
	for _, a := range actions {
		want, ok := dims[a.Index]
		if !ok {
			want, err = indexDimensions(ctx, tx, a.Index)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			if err != nil {
				want = -1
			}
			dims[a.Index] = want
		}

		if want < 0 {
			rec.Failed(a, http.StatusNotFound, "index_not_found_exception", "no such index ["+a.Index+"]")
			continue
		}
		if want > 0 && a.Doc.Dimensions() != want {
			rec.Failed(a, http.StatusBadRequest, "mapper_parsing_exception",
				fmt.Sprintf("vector dimension %d does not match mapping %d", a.Doc.Dimensions(), want))
			continue
		}

		exif, err := json.Marshal(a.Doc.Exif)
		if err != nil {
			return nil, fmt.Errorf("marshalling exif: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, a.Index, a.ID, a.Doc.ImageID, a.Doc.ImageName,
			a.Doc.RelativePath, local.EncodeVector(a.Doc.Embedding), string(exif)); err != nil {
			return nil, fmt.Errorf("storing image %s: %w", a.ID, err)
		}
		rec.Created(a)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing bulk: %w", err)
	}
	return rec.Response(), nil
}

// Flush checkpoints the write-ahead log into the database file.
func (s *searchIndex) Flush(ctx context.Context, name string) error {
	if _, err := indexDimensions(ctx, s.store.db, name); err != nil {
		return err
	}

	var busy, logFrames, checkpointed int
	row := s.store.db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	if err := row.Scan(&busy, &logFrames, &checkpointed); err != nil {
		return fmt.Errorf("checkpointing: %w", err)
	}
	return nil
}

// KNNSearch ranks every document of the index by cosine similarity.
func (s *searchIndex) KNNSearch(ctx context.Context, name string, query domain.KNNQuery) ([]domain.Hit, error) {
	dims, err := indexDimensions(ctx, s.store.db, name)
	if err != nil {
		return nil, err
	}
	if dims > 0 && len(query.Vector) != dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index %d", domain.ErrDimensionMismatch, len(query.Vector), dims)
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT doc_id, image_id, image_name, relative_path, embedding, exif
		FROM images WHERE index_name = ?
	`, name)
	if err != nil {
		return nil, fmt.Errorf("querying images: %w", err)
	}
	defer rows.Close()

	ranker := local.NewRanker(query.Vector, query.K)
	for rows.Next() {
		id, doc, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		ranker.Offer(id, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating images: %w", err)
	}
	return ranker.Hits(), nil
}

// Ping checks the database answers.
func (s *searchIndex) Ping(ctx context.Context) error {
	if err := s.store.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Close is a no-op; the Store owns the database handle.
func (s *searchIndex) Close() error {
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// indexDimensions returns the declared vector dimension of an index.
func indexDimensions(ctx context.Context, q queryer, name string) (int, error) {
	var dims int
	row := q.QueryRowContext(ctx, "SELECT dimensions FROM indexes WHERE name = ?", name)
	if err := row.Scan(&dims); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: index %s", domain.ErrNotFound, name)
		}
		return 0, fmt.Errorf("scanning index: %w", err)
	}
	return dims, nil
}

func scanImage(rows *sql.Rows) (string, domain.ImageDocument, error) {
	var (
		id       string
		doc      domain.ImageDocument
		blob     []byte
		exifJSON string
	)
	if err := rows.Scan(&id, &doc.ImageID, &doc.ImageName, &doc.RelativePath, &blob, &exifJSON); err != nil {
		return "", doc, fmt.Errorf("scanning image: %w", err)
	}

	vector, err := local.DecodeVector(blob)
	if err != nil {
		return "", doc, fmt.Errorf("image %s: %w", id, err)
	}
	doc.Embedding = vector

	if err := json.Unmarshal([]byte(exifJSON), &doc.Exif); err != nil {
		return "", doc, fmt.Errorf("image %s: %w", id, err)
	}
	return id, doc, nil
}

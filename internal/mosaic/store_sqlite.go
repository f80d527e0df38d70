// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

/*
Package mosaic provides the SQLite implementation of the mosaic Repository.

Storage layout:

  - mosaics: metadata + style, keyed by UUID with a monotonic rowid Idx.
  - segments: one row per grid cell, cascading with the mosaic.
  - pixel_buffers: the ORIGINAL and CURRENT RGB buffers as BLOBs.
  - artifacts: derived JPEG/GIF encodings, regenerated on change.

The schema is bootstrapped with idempotent DDL on construction. All writes
run on a single connection (see platform/sqlite), so transactions serialize
naturally and the read-modify-write cycles of the fill engine never
interleave.
*/
package mosaic

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/vannpham/mosava/internal/platform/apperr"
	"github.com/vannpham/mosava/internal/platform/dberr"
	"github.com/vannpham/mosava/internal/platform/imaging"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS mosaics (
	idx            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT    NOT NULL UNIQUE,
	title          TEXT    NOT NULL DEFAULT '',
	active         INTEGER NOT NULL DEFAULT 0,
	filled         INTEGER NOT NULL DEFAULT 0,
	original       INTEGER NOT NULL DEFAULT 1,
	segment_width  INTEGER NOT NULL,
	segment_height INTEGER NOT NULL,
	rows           INTEGER NOT NULL,
	cols           INTEGER NOT NULL,
	space_top      INTEGER NOT NULL,
	space_left     INTEGER NOT NULL,
	num_segments   INTEGER NOT NULL,
	bg_brightness  REAL    NOT NULL,
	mosaic_blend   REAL    NOT NULL,
	segment_blend  REAL    NOT NULL,
	blur_low       INTEGER NOT NULL,
	blur_medium    INTEGER NOT NULL,
	blur_high      INTEGER NOT NULL,
	created_at     TEXT    NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS segments (
	id               TEXT    PRIMARY KEY,
	mosaic_id        TEXT    NOT NULL REFERENCES mosaics(id) ON DELETE CASCADE,
	row_idx          INTEGER NOT NULL,
	col_idx          INTEGER NOT NULL,
	x_min            INTEGER NOT NULL,
	x_max            INTEGER NOT NULL,
	y_min            INTEGER NOT NULL,
	y_max            INTEGER NOT NULL,
	brightness       INTEGER NOT NULL,
	fillable         INTEGER NOT NULL DEFAULT 0,
	filled           INTEGER NOT NULL DEFAULT 0,
	is_start_segment INTEGER NOT NULL DEFAULT 0,
	random_sort_key  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_segments_lookup
	ON segments(mosaic_id, fillable, filled, brightness);

CREATE TABLE IF NOT EXISTS pixel_buffers (
	mosaic_id TEXT NOT NULL REFERENCES mosaics(id) ON DELETE CASCADE,
	category  TEXT NOT NULL,
	data      BLOB NOT NULL,
	PRIMARY KEY (mosaic_id, category)
);

CREATE TABLE IF NOT EXISTS artifacts (
	mosaic_id TEXT NOT NULL REFERENCES mosaics(id) ON DELETE CASCADE,
	category  TEXT NOT NULL,
	data      BLOB NOT NULL,
	PRIMARY KEY (mosaic_id, category)
);
`

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx, letting
// one repository implementation serve both transactional and plain calls.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite-backed [Repository].
type Store struct {
	db *sql.DB
	q  dbtx
	// tx is non-nil when this store is scoped to an open transaction.
	tx *sql.Tx
}

// NewStore constructs the repository and bootstraps the schema.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return nil, fmt.Errorf("mosaic: failed to bootstrap schema: %w", err)
	}
	return &Store{db: db, q: db}, nil
}

// RunInTx executes fn against a transaction-scoped copy of the store.
// Nested calls reuse the outer transaction.
func (repository *Store) RunInTx(context context.Context, fn func(Repository) error) error {
	if repository.tx != nil {
		return fn(repository)
	}

	tx, err := repository.db.BeginTx(context, nil)
	if err != nil {
		return dberr.Wrap(err, "begin transaction")
	}

	scoped := &Store{db: repository.db, q: tx, tx: tx}
	if err := fn(scoped); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return dberr.Wrap(err, "commit transaction")
	}
	return nil
}

// # Mosaic CRUD

const mosaicColumns = `idx, id, title, active, filled, original,
	segment_width, segment_height, rows, cols, space_top, space_left,
	num_segments, bg_brightness, mosaic_blend, segment_blend,
	blur_low, blur_medium, blur_high`

func (repository *Store) InsertMosaic(context context.Context, m *Mosaic) error {
	result, err := repository.q.ExecContext(context, `
		INSERT INTO mosaics (id, title, active, filled, original,
			segment_width, segment_height, rows, cols, space_top, space_left,
			num_segments, bg_brightness, mosaic_blend, segment_blend,
			blur_low, blur_medium, blur_high)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.Active, m.Filled, m.Original,
		m.SegmentWidth, m.SegmentHeight, m.Rows, m.Cols, m.SpaceTop, m.SpaceLeft,
		m.Style.NumSegments, m.Style.BGBrightness, m.Style.MosaicBlend, m.Style.SegmentBlend,
		m.Style.BlurLow, m.Style.BlurMedium, m.Style.BlurHigh,
	)
	if err != nil {
		return dberr.Wrap(err, "insert mosaic")
	}

	idx, err := result.LastInsertId()
	if err != nil {
		return dberr.Wrap(err, "read mosaic idx")
	}
	m.Idx = int(idx)
	return nil
}

func (repository *Store) UpdateMosaic(context context.Context, m *Mosaic) error {
	result, err := repository.q.ExecContext(context, `
		UPDATE mosaics SET title = ?, active = ?, filled = ?, original = ?
		WHERE id = ?`,
		m.Title, m.Active, m.Filled, m.Original, m.ID,
	)
	if err != nil {
		return dberr.Wrap(err, "update mosaic")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return apperr.NotFound("Mosaic")
	}
	return nil
}

func (repository *Store) GetMosaic(context context.Context, id string) (*Mosaic, error) {
	row := repository.q.QueryRowContext(context,
		`SELECT `+mosaicColumns+` FROM mosaics WHERE id = ?`, id)

	m := &Mosaic{}
	err := row.Scan(
		&m.Idx, &m.ID, &m.Title, &m.Active, &m.Filled, &m.Original,
		&m.SegmentWidth, &m.SegmentHeight, &m.Rows, &m.Cols, &m.SpaceTop, &m.SpaceLeft,
		&m.Style.NumSegments, &m.Style.BGBrightness, &m.Style.MosaicBlend, &m.Style.SegmentBlend,
		&m.Style.BlurLow, &m.Style.BlurMedium, &m.Style.BlurHigh,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("Mosaic")
		}
		return nil, dberr.Wrap(err, "get mosaic")
	}
	return m, nil
}

func (repository *Store) DeleteMosaic(context context.Context, id string) error {
	result, err := repository.q.ExecContext(context, `DELETE FROM mosaics WHERE id = ?`, id)
	if err != nil {
		return dberr.Wrap(err, "delete mosaic")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return apperr.NotFound("Mosaic")
	}
	return nil
}

func (repository *Store) ListMosaics(context context.Context) ([]*MosaicSummary, error) {
	rows, err := repository.q.QueryContext(context, `
		SELECT id, idx, title, active, filled, original
		FROM mosaics ORDER BY idx ASC`)
	if err != nil {
		return nil, dberr.Wrap(err, "list mosaics")
	}
	defer rows.Close()

	var summaries []*MosaicSummary
	for rows.Next() {
		summary := &MosaicSummary{}
		if err := rows.Scan(&summary.ID, &summary.Idx, &summary.Title,
			&summary.Active, &summary.Filled, &summary.Original); err != nil {
			return nil, dberr.Wrap(err, "scan mosaic summary")
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func (repository *Store) MosaicCount(context context.Context) (int, error) {
	var count int
	err := repository.q.QueryRowContext(context, `SELECT COUNT(*) FROM mosaics`).Scan(&count)
	if err != nil {
		return 0, dberr.Wrap(err, "count mosaics")
	}
	return count, nil
}

func (repository *Store) MosaicExists(context context.Context, id string) (bool, error) {
	var one int
	err := repository.q.QueryRowContext(context,
		`SELECT 1 FROM mosaics WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, dberr.Wrap(err, "check mosaic exists")
	}
	return true, nil
}

// # Segment Storage

func (repository *Store) UpsertSegments(context context.Context, segments []*Segment) error {
	const upsert = `
		INSERT INTO segments (id, mosaic_id, row_idx, col_idx,
			x_min, x_max, y_min, y_max, brightness,
			fillable, filled, is_start_segment, random_sort_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			fillable = excluded.fillable,
			filled = excluded.filled,
			is_start_segment = excluded.is_start_segment`

	for _, segment := range segments {
		_, err := repository.q.ExecContext(context, upsert,
			segment.ID, segment.MosaicID, segment.RowIdx, segment.ColIdx,
			segment.XMin, segment.XMax, segment.YMin, segment.YMax, int(segment.Brightness),
			segment.Fillable, segment.Filled, segment.IsStartSegment, segment.RandomSortKey,
		)
		if err != nil {
			return dberr.Wrap(err, "upsert segment")
		}
	}
	return nil
}

func (repository *Store) GetSegments(context context.Context, filter SegmentFilter) ([]*Segment, error) {

	var queryBuilder strings.Builder
	var args []any

	queryBuilder.WriteString(`
		SELECT id, mosaic_id, row_idx, col_idx,
			x_min, x_max, y_min, y_max, brightness,
			fillable, filled, is_start_segment, random_sort_key
		FROM segments WHERE 1=1`)

	addClause := func(column string, value any) {
		queryBuilder.WriteString(" AND " + column + " = ?")
		args = append(args, value)
	}

	if filter.ID != nil {
		addClause("id", *filter.ID)
	}
	if filter.MosaicID != nil {
		addClause("mosaic_id", *filter.MosaicID)
	}
	if filter.Brightness != nil {
		addClause("brightness", int(*filter.Brightness))
	}
	if filter.Fillable != nil {
		addClause("fillable", *filter.Fillable)
	}
	if filter.Filled != nil {
		addClause("filled", *filter.Filled)
	}
	if filter.RowIdx != nil {
		addClause("row_idx", *filter.RowIdx)
	}
	if filter.ColIdx != nil {
		addClause("col_idx", *filter.ColIdx)
	}

	if filter.RandomOrder {
		queryBuilder.WriteString(" ORDER BY random_sort_key ASC")
	} else {
		queryBuilder.WriteString(" ORDER BY row_idx ASC, col_idx ASC")
	}

	if filter.Limit > 0 {
		queryBuilder.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := repository.q.QueryContext(context, queryBuilder.String(), args...)
	if err != nil {
		return nil, dberr.Wrap(err, "get segments")
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		segment := &Segment{}
		var brightness int
		err := rows.Scan(
			&segment.ID, &segment.MosaicID, &segment.RowIdx, &segment.ColIdx,
			&segment.XMin, &segment.XMax, &segment.YMin, &segment.YMax, &brightness,
			&segment.Fillable, &segment.Filled, &segment.IsStartSegment, &segment.RandomSortKey,
		)
		if err != nil {
			return nil, dberr.Wrap(err, "scan segment")
		}
		segment.Brightness = BrightnessTier(brightness)
		segments = append(segments, segment)
	}
	return segments, rows.Err()
}

func (repository *Store) SegmentExists(context context.Context, mosaicID, segmentID string) (bool, error) {
	var one int
	err := repository.q.QueryRowContext(context,
		`SELECT 1 FROM segments WHERE id = ? AND mosaic_id = ?`, segmentID, mosaicID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, dberr.Wrap(err, "check segment exists")
	}
	return true, nil
}

func (repository *Store) SegmentStats(context context.Context, mosaicID string) (TierStats, error) {
	rows, err := repository.q.QueryContext(context, `
		SELECT brightness, COUNT(*) FROM segments
		WHERE mosaic_id = ? AND filled = 0
		GROUP BY brightness`, mosaicID)
	if err != nil {
		return TierStats{}, dberr.Wrap(err, "segment stats")
	}
	defer rows.Close()

	var stats TierStats
	for rows.Next() {
		var brightness, count int
		if err := rows.Scan(&brightness, &count); err != nil {
			return TierStats{}, dberr.Wrap(err, "scan segment stats")
		}
		switch BrightnessTier(brightness) {
		case BrightnessLow:
			stats.Low = count
		case BrightnessMedium:
			stats.Medium = count
		case BrightnessHigh:
			stats.High = count
		}
	}
	return stats, rows.Err()
}

// # Pixel Buffers & Artifacts

func (repository *Store) UpsertPixelBuffer(context context.Context, mosaicID string, category PixelCategory, pixels *imaging.Pixels) error {
	_, err := repository.q.ExecContext(context, `
		INSERT INTO pixel_buffers (mosaic_id, category, data) VALUES (?, ?, ?)
		ON CONFLICT(mosaic_id, category) DO UPDATE SET data = excluded.data`,
		mosaicID, string(category), pixels.Marshal(),
	)
	return dberr.Wrap(err, "upsert pixel buffer")
}

func (repository *Store) GetPixelBuffer(context context.Context, mosaicID string, category PixelCategory) (*imaging.Pixels, error) {
	var blob []byte
	err := repository.q.QueryRowContext(context,
		`SELECT data FROM pixel_buffers WHERE mosaic_id = ? AND category = ?`,
		mosaicID, string(category)).Scan(&blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("Pixel buffer")
		}
		return nil, dberr.Wrap(err, "get pixel buffer")
	}

	pixels, err := imaging.UnmarshalPixels(blob)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return pixels, nil
}

func (repository *Store) UpsertArtifact(context context.Context, mosaicID string, category ArtifactCategory, payload []byte) error {
	_, err := repository.q.ExecContext(context, `
		INSERT INTO artifacts (mosaic_id, category, data) VALUES (?, ?, ?)
		ON CONFLICT(mosaic_id, category) DO UPDATE SET data = excluded.data`,
		mosaicID, string(category), payload,
	)
	return dberr.Wrap(err, "upsert artifact")
}

func (repository *Store) GetArtifact(context context.Context, mosaicID string, category ArtifactCategory) ([]byte, error) {
	var payload []byte
	err := repository.q.QueryRowContext(context,
		`SELECT data FROM artifacts WHERE mosaic_id = ? AND category = ?`,
		mosaicID, string(category)).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("Artifact")
		}
		return nil, dberr.Wrap(err, "get artifact")
	}
	return payload, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sensitive-scanner/internal/logging"
	"sensitive-scanner/internal/mediatypes"
)

// ErrAssetNotFound is returned when an asset id has no catalog row.
var ErrAssetNotFound = errors.New("asset not found")

// UpsertAssets inserts or updates a batch of assets in a single transaction.
func (d *Database) UpsertAssets(ctx context.Context, assets []Asset) error {
	if len(assets) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_assets", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	execCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(execCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(execCtx, `
		INSERT INTO assets (id, path, kind, size, mod_time, remote_url, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			id = excluded.id,
			kind = excluded.kind,
			size = excluded.size,
			mod_time = excluded.mod_time,
			remote_url = excluded.remote_url,
			indexed_at = excluded.indexed_at`)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Error("failed to rollback after prepare failure: %v", rbErr)
		}
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			logging.Warn("failed to close upsert statement: %v", closeErr)
		}
	}()

	for i := range assets {
		a := &assets[i]
		var remote sql.NullString
		if a.RemoteURL != "" {
			remote = sql.NullString{String: a.RemoteURL, Valid: true}
		}
		if _, err = stmt.ExecContext(execCtx,
			a.ID, a.Path, string(a.Kind), a.Size, a.ModTime.Unix(), remote, a.IndexedAt.Unix(),
		); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error("failed to rollback after upsert failure: %v", rbErr)
			}
			return fmt.Errorf("failed to upsert asset %s: %w", a.Path, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert batch: %w", err)
	}

	return nil
}

// EnumerateAssets returns the full ordered asset list for a scan snapshot.
// Assets are ordered newest first, matching the presentation order of the
// library. When includeVideos is false only images are returned.
func (d *Database) EnumerateAssets(ctx context.Context, includeVideos bool) ([]Asset, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("enumerate_assets", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	queryCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `SELECT id, path, kind, size, mod_time, remote_url, indexed_at
		FROM assets WHERE kind = ? OR (? AND kind = ?)
		ORDER BY mod_time DESC, path ASC`

	rows, err := d.db.QueryContext(queryCtx, query,
		string(mediatypes.KindImage), includeVideos, string(mediatypes.KindVideo))
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate assets: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("failed to close asset rows: %v", closeErr)
		}
	}()

	var assets []Asset
	for rows.Next() {
		a, scanErr := scanAssetRow(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		assets = append(assets, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("asset enumeration failed: %w", err)
	}

	return assets, nil
}

// CountAssets returns the number of catalogued assets eligible for a scan.
func (d *Database) CountAssets(ctx context.Context, includeVideos bool) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_assets", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	queryCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var count int
	err = d.db.QueryRowContext(queryCtx,
		`SELECT COUNT(*) FROM assets WHERE kind = ? OR (? AND kind = ?)`,
		string(mediatypes.KindImage), includeVideos, string(mediatypes.KindVideo),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}

	return count, nil
}

// GetAsset returns a single asset by id.
func (d *Database) GetAsset(ctx context.Context, id string) (*Asset, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_asset", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	queryCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(queryCtx,
		`SELECT id, path, kind, size, mod_time, remote_url, indexed_at
		FROM assets WHERE id = ?`, id)

	a, err := scanAssetRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrAssetNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %s: %w", id, err)
	}

	return &a, nil
}

// DeleteAsset removes a catalog row by id.
// Returns ErrAssetNotFound if no row matched.
func (d *Database) DeleteAsset(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_asset", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	execCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(execCtx, "DELETE FROM assets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete asset %s: %w", id, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		err = ErrAssetNotFound
		return err
	}

	return nil
}

// PruneAssetsBefore removes assets whose indexed_at predates the given time.
// Used after a full catalog refresh to drop files that vanished from disk.
func (d *Database) PruneAssetsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("prune_assets", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	execCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(execCtx,
		"DELETE FROM assets WHERE indexed_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune assets: %w", err)
	}

	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// CountsByKind returns the number of catalogued assets per kind.
func (d *Database) CountsByKind(ctx context.Context) (map[mediatypes.Kind]int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("counts_by_kind", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	queryCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(queryCtx,
		"SELECT kind, COUNT(*) FROM assets GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("failed to count assets by kind: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("failed to close count rows: %v", closeErr)
		}
	}()

	counts := make(map[mediatypes.Kind]int)
	for rows.Next() {
		var kind string
		var count int
		if err = rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan kind count: %w", err)
		}
		counts[mediatypes.Kind(kind)] = count
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssetRow(row rowScanner) (Asset, error) {
	var a Asset
	var kind string
	var modTime, indexedAt int64
	var remote sql.NullString

	if err := row.Scan(&a.ID, &a.Path, &kind, &a.Size, &modTime, &remote, &indexedAt); err != nil {
		return Asset{}, err
	}

	a.Kind = mediatypes.Kind(kind)
	a.ModTime = time.Unix(modTime, 0)
	a.IndexedAt = time.Unix(indexedAt, 0)
	if remote.Valid {
		a.RemoteURL = remote.String
	}

	return a, nil
}

// Package relational is the adapter for the SQLite store holding auxiliary
// join rows (player sessions, campaign progress). Every operation here is
// best-effort: the document store is the source of truth, and a missing
// table or failed delete degrades to a warning upstream.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/BillClerici/skill-forge-sub000/internal/config"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// DB wraps the SQLite connection.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Open creates a connection with WAL mode, foreign keys, and a busy
// timeout for better concurrency.
func Open(cfg config.RelationalConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, types.WrapError(types.SQL_OPEN_FAILED, "failed to open relational store", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, types.WrapError(types.SQL_OPEN_FAILED, "failed to ping relational store", err)
	}

	return &DB{conn: conn, logger: logger}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Migrate creates the auxiliary tables when absent. Safe to run repeatedly.
func (db *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS player_sessions (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL,
			player_name TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_player_sessions_campaign ON player_sessions(campaign_id)`,
		`CREATE TABLE IF NOT EXISTS campaign_progress (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL,
			scene_id TEXT NOT NULL,
			completed_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_campaign_progress_campaign ON campaign_progress(campaign_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return types.WrapError(types.SQL_OPEN_FAILED, "migration failed", err)
		}
	}
	return nil
}

// InsertPlayerSession records one player session row.
func (db *DB) InsertPlayerSession(ctx context.Context, id, campaignID types.ID, playerName string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO player_sessions (id, campaign_id, player_name) VALUES (?, ?, ?)`,
		id.String(), campaignID.String(), playerName)
	if err != nil {
		return types.WrapError(types.SQL_DELETE_FAILED, "failed to insert player session", err)
	}
	return nil
}

// InsertProgress records one progress row.
func (db *DB) InsertProgress(ctx context.Context, id, campaignID, sceneID types.ID) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO campaign_progress (id, campaign_id, scene_id) VALUES (?, ?, ?)`,
		id.String(), campaignID.String(), sceneID.String())
	if err != nil {
		return types.WrapError(types.SQL_DELETE_FAILED, "failed to insert progress row", err)
	}
	return nil
}

// DeleteByCampaign removes all auxiliary rows keyed by the campaign foreign
// key. Returns total rows deleted. Callers treat any error (including a
// missing table on a fresh deployment) as a warning, never a failure.
func (db *DB) DeleteByCampaign(ctx context.Context, campaignID types.ID) (int64, error) {
	var total int64
	for _, table := range []string{"player_sessions", "campaign_progress"} {
		res, err := db.conn.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE campaign_id = ?`, table),
			campaignID.String())
		if err != nil {
			return total, types.WrapError(types.SQL_DELETE_FAILED,
				"failed to delete rows from "+table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	db.logger.Debug("relational cleanup", "campaign_id", campaignID, "rows_deleted", total)
	return total, nil
}

// CountByCampaign reports how many auxiliary rows still reference the
// campaign. Used by tests and the status command.
func (db *DB) CountByCampaign(ctx context.Context, campaignID types.ID) (int64, error) {
	var total int64
	for _, table := range []string{"player_sessions", "campaign_progress"} {
		var n int64
		err := db.conn.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE campaign_id = ?`, table),
			campaignID.String()).Scan(&n)
		if err != nil {
			return total, types.WrapError(types.SQL_DELETE_FAILED, "count failed on "+table, err)
		}
		total += n
	}
	return total, nil
}

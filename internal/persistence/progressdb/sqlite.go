// Package progressdb persists per-player advancement progress in a local
// sqlite database: one row per obtained-or-tracked criterion. The derived
// done flag is recomputed against the live registry on load.
package progressdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"opalcraft.gg/internal/advancement"
	"opalcraft.gg/internal/resource"
)

const schema = `
CREATE TABLE IF NOT EXISTS player_progress (
	player_id      TEXT NOT NULL,
	advancement_id TEXT NOT NULL,
	criterion      TEXT NOT NULL,
	obtained_ms    INTEGER,
	PRIMARY KEY (player_id, advancement_id, criterion)
);
`

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the player's stored rows with the given snapshot.
func (s *Store) Save(playerID string, progress map[resource.ID]*advancement.Progress) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM player_progress WHERE player_id = ?`, playerID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO player_progress (player_id, advancement_id, criterion, obtained_ms) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, p := range progress {
		for name, c := range p.Criteria {
			var ms *int64
			if c.ObtainedTime != nil {
				v := c.ObtainedTime.UnixMilli()
				ms = &v
			}
			if _, err := stmt.Exec(playerID, id.String(), name, ms); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// Load reads the player's rows back into progress records, deriving each
// done flag from the registry's requirements. Advancements the registry no
// longer knows stay tracked but not done.
func (s *Store) Load(playerID string, reg *advancement.Registry) (map[resource.ID]*advancement.Progress, error) {
	rows, err := s.db.Query(
		`SELECT advancement_id, criterion, obtained_ms FROM player_progress WHERE player_id = ?`,
		playerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[resource.ID]*advancement.Progress)
	for rows.Next() {
		var rawID, criterion string
		var ms sql.NullInt64
		if err := rows.Scan(&rawID, &criterion, &ms); err != nil {
			return nil, err
		}
		id, err := resource.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("stored advancement id: %w", err)
		}
		p, ok := out[id]
		if !ok {
			p = advancement.NewProgress()
			out[id] = p
		}
		if ms.Valid {
			p.GrantAt(criterion, time.UnixMilli(ms.Int64))
		} else {
			p.Criteria[criterion] = &advancement.CriterionProgress{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for id, p := range out {
		if adv, ok := reg.Get(id); ok {
			p.UpdateDone(adv.Requirements)
		}
	}
	return out, nil
}

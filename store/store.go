// Package store persists the records decoded from the panel in a local
// SQLite database. Writes are transactional slot-level replaces: the
// panel reports every slot of a configuration block, disabled ones
// included, so upserting by slot fully replaces the block on each
// download. Custom scenarios live above slot 100 and are never touched
// by a download.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/caarlos0/smsalarm/smsproto"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS zones (
	slot     INTEGER PRIMARY KEY,
	name     TEXT NOT NULL,
	enabled  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS scenarios (
	slot       INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	enabled    INTEGER NOT NULL DEFAULT 0,
	zone_mask  INTEGER NOT NULL DEFAULT 0,
	is_custom  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS users (
	slot         INTEGER PRIMARY KEY,
	name         TEXT NOT NULL,
	enabled      INTEGER NOT NULL DEFAULT 0,
	permissions  INTEGER NOT NULL DEFAULT 0,
	is_joker     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS panel (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version       TEXT NOT NULL DEFAULT '',
	main_account  INTEGER NOT NULL DEFAULT 0,
	flags         INTEGER NOT NULL DEFAULT 0,
	configured    INTEGER NOT NULL DEFAULT 0,
	status        INTEGER NOT NULL DEFAULT 0,
	scenario      TEXT NOT NULL DEFAULT '',
	status_at     TEXT NOT NULL DEFAULT ''
);

INSERT INTO panel (id) SELECT 1 WHERE NOT EXISTS (SELECT 1 FROM panel);
`

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema is
// current. An outdated schema is dropped and recreated: everything here
// can be re-downloaded from the panel except custom scenarios, which a
// version bump must migrate explicitly.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("could not open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not enable foreign keys: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("could not create schema: %w", err)
	}
	var ver int
	err := db.QueryRow("SELECT version FROM schema_meta LIMIT 1").Scan(&ver)
	switch {
	case err == sql.ErrNoRows:
		if _, err := db.Exec("INSERT INTO schema_meta (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("could not record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("could not check schema version: %w", err)
	case ver != schemaVersion:
		return fmt.Errorf("unsupported schema version %d", ver)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) PutPanelInfo(version string, main bool, flags smsproto.Permissions) error {
	_, err := s.db.Exec(
		"UPDATE panel SET version = ?, main_account = ?, flags = ? WHERE id = 1",
		version, boolInt(main), int(flags),
	)
	if err != nil {
		return fmt.Errorf("could not store panel info: %w", err)
	}
	return nil
}

func (s *Store) PutZones(zones []smsproto.ZoneRecord) error {
	return s.inTx(func(tx *sql.Tx) error {
		for _, z := range zones {
			if _, err := tx.Exec(
				"INSERT OR REPLACE INTO zones (slot, name, enabled) VALUES (?, ?, ?)",
				z.Slot, z.Name, boolInt(z.Enabled),
			); err != nil {
				return fmt.Errorf("could not store zone %d: %w", z.Slot, err)
			}
		}
		return nil
	})
}

func (s *Store) PutScenarios(scenarios []smsproto.ScenarioRecord) error {
	return s.inTx(func(tx *sql.Tx) error {
		for _, sc := range scenarios {
			if !sc.IsCustom && sc.Slot > smsproto.CustomScenarioBase {
				return fmt.Errorf("predefined scenario in custom slot %d", sc.Slot)
			}
			if _, err := tx.Exec(
				"INSERT OR REPLACE INTO scenarios (slot, name, enabled, zone_mask, is_custom) VALUES (?, ?, ?, ?, ?)",
				sc.Slot, sc.Name, boolInt(sc.Enabled), int(sc.ZoneMask), boolInt(sc.IsCustom),
			); err != nil {
				return fmt.Errorf("could not store scenario %d: %w", sc.Slot, err)
			}
		}
		return nil
	})
}

func (s *Store) PutUsers(users []smsproto.UserRecord) error {
	return s.inTx(func(tx *sql.Tx) error {
		for _, u := range users {
			if _, err := tx.Exec(
				"INSERT OR REPLACE INTO users (slot, name, enabled, permissions, is_joker) VALUES (?, ?, ?, ?, ?)",
				u.Slot, u.Name, boolInt(u.Enabled), int(u.Permissions), boolInt(u.IsJoker),
			); err != nil {
				return fmt.Errorf("could not store user %d: %w", u.Slot, err)
			}
		}
		return nil
	})
}

func (s *Store) PutStatus(status smsproto.Status, scenario string) error {
	_, err := s.db.Exec(
		"UPDATE panel SET status = ?, scenario = ?, status_at = ? WHERE id = 1",
		int(status), scenario, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("could not store status: %w", err)
	}
	return nil
}

func (s *Store) MarkConfigured(configured bool) error {
	if _, err := s.db.Exec("UPDATE panel SET configured = ? WHERE id = 1", boolInt(configured)); err != nil {
		return fmt.Errorf("could not mark configured: %w", err)
	}
	return nil
}

// SaveCustomScenario stores a locally created scenario, allocating the
// next free slot above CustomScenarioBase when rec.Slot is zero.
func (s *Store) SaveCustomScenario(rec smsproto.ScenarioRecord) (int, error) {
	if !rec.IsCustom {
		return 0, fmt.Errorf("scenario %q is not custom", rec.Name)
	}
	slot := rec.Slot
	err := s.inTx(func(tx *sql.Tx) error {
		if slot == 0 {
			var maxSlot sql.NullInt64
			if err := tx.QueryRow(
				"SELECT MAX(slot) FROM scenarios WHERE is_custom = 1",
			).Scan(&maxSlot); err != nil {
				return fmt.Errorf("could not allocate custom slot: %w", err)
			}
			slot = smsproto.CustomScenarioBase + 1
			if maxSlot.Valid && int(maxSlot.Int64) >= slot {
				slot = int(maxSlot.Int64) + 1
			}
		}
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO scenarios (slot, name, enabled, zone_mask, is_custom) VALUES (?, ?, ?, ?, 1)",
			slot, rec.Name, boolInt(rec.Enabled), int(rec.ZoneMask),
		); err != nil {
			return fmt.Errorf("could not store custom scenario: %w", err)
		}
		return nil
	})
	return slot, err
}

func (s *Store) Zones() ([]smsproto.ZoneRecord, error) {
	rows, err := s.db.Query("SELECT slot, name, enabled FROM zones ORDER BY slot")
	if err != nil {
		return nil, fmt.Errorf("could not read zones: %w", err)
	}
	defer rows.Close()
	var zones []smsproto.ZoneRecord
	for rows.Next() {
		var z smsproto.ZoneRecord
		var enabled int
		if err := rows.Scan(&z.Slot, &z.Name, &enabled); err != nil {
			return nil, fmt.Errorf("could not read zones: %w", err)
		}
		z.Enabled = enabled != 0
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

func (s *Store) Scenarios() ([]smsproto.ScenarioRecord, error) {
	rows, err := s.db.Query(
		"SELECT slot, name, enabled, zone_mask, is_custom FROM scenarios ORDER BY slot",
	)
	if err != nil {
		return nil, fmt.Errorf("could not read scenarios: %w", err)
	}
	defer rows.Close()
	var scenarios []smsproto.ScenarioRecord
	for rows.Next() {
		var sc smsproto.ScenarioRecord
		var enabled, mask, custom int
		if err := rows.Scan(&sc.Slot, &sc.Name, &enabled, &mask, &custom); err != nil {
			return nil, fmt.Errorf("could not read scenarios: %w", err)
		}
		sc.Enabled = enabled != 0
		sc.ZoneMask = uint8(mask)
		sc.IsCustom = custom != 0
		scenarios = append(scenarios, sc)
	}
	return scenarios, rows.Err()
}

func (s *Store) Users() ([]smsproto.UserRecord, error) {
	rows, err := s.db.Query(
		"SELECT slot, name, enabled, permissions, is_joker FROM users ORDER BY slot",
	)
	if err != nil {
		return nil, fmt.Errorf("could not read users: %w", err)
	}
	defer rows.Close()
	var users []smsproto.UserRecord
	for rows.Next() {
		var u smsproto.UserRecord
		var enabled, perms, joker int
		if err := rows.Scan(&u.Slot, &u.Name, &enabled, &perms, &joker); err != nil {
			return nil, fmt.Errorf("could not read users: %w", err)
		}
		u.Enabled = enabled != 0
		u.Permissions = smsproto.Permissions(perms)
		u.IsJoker = joker != 0
		users = append(users, u)
	}
	return users, rows.Err()
}

// PanelInfo is the panel-level state tracked alongside the record sets.
type PanelInfo struct {
	Version     string
	MainAccount bool
	Flags       smsproto.Permissions
	Configured  bool
	Status      smsproto.Status
	Scenario    string
}

func (s *Store) Panel() (PanelInfo, error) {
	var info PanelInfo
	var main, flags, configured, status int
	err := s.db.QueryRow(
		"SELECT version, main_account, flags, configured, status, scenario FROM panel WHERE id = 1",
	).Scan(&info.Version, &main, &flags, &configured, &status, &info.Scenario)
	if err != nil {
		return PanelInfo{}, fmt.Errorf("could not read panel info: %w", err)
	}
	info.MainAccount = main != 0
	info.Flags = smsproto.Permissions(flags)
	info.Configured = configured != 0
	info.Status = smsproto.Status(status)
	return info, nil
}

func (s *Store) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

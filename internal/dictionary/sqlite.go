package dictionary

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openlogreplicator/analyzer/internal/schema"
)

// SQLiteCache persists the most recently fetched dictionary snapshot to a
// local sqlite file, so a restart can bootstrap internal/schema without a
// round trip to the Dictionary service when the cached snapshot is still
// valid for the resumed SCN.
type SQLiteCache struct {
	db *sql.DB
}

// OpenSQLiteCache opens (creating if necessary) the cache database at path.
func OpenSQLiteCache(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("dictionary: opening sqlite cache: %w", err)
	}
	var c = &SQLiteCache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCache) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS dictionary_objects (
	table_name TEXT NOT NULL,
	obj        INTEGER NOT NULL,
	body       BLOB NOT NULL,
	PRIMARY KEY (table_name, obj)
);`
	_, err := c.db.Exec(ddl)
	return err
}

// Store replaces the cached snapshot of table with objects.
func (c *SQLiteCache) Store(table string, objects []*schema.Object) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM dictionary_objects WHERE table_name = ?`, table); err != nil {
		tx.Rollback()
		return err
	}
	for _, o := range objects {
		body, err := json.Marshal(o)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`INSERT INTO dictionary_objects (table_name, obj, body) VALUES (?, ?, ?)`, table, o.Obj, body); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Load returns the cached snapshot of table, or an empty slice if nothing
// has been cached yet.
func (c *SQLiteCache) Load(table string) ([]*schema.Object, error) {
	rows, err := c.db.Query(`SELECT body FROM dictionary_objects WHERE table_name = ?`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*schema.Object
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var o schema.Object
		if err := json.Unmarshal(body, &o); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"adventure-editor/adventure"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newSlug() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String())
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS adventures (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		slug         TEXT NOT NULL UNIQUE,
		view_slug    TEXT NOT NULL UNIQUE,
		title        TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT '',
		locked       INTEGER NOT NULL DEFAULT 0,
		cover_url    TEXT NOT NULL DEFAULT '',
		image_id     INTEGER NOT NULL DEFAULT 0,
		props        TEXT NOT NULL DEFAULT '',
		category     TEXT,
		users        TEXT,
		edit_version INTEGER NOT NULL DEFAULT 0,
		view_count   INTEGER NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS adventure_nodes (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		adventure_id      INTEGER NOT NULL REFERENCES adventures(id) ON DELETE CASCADE,
		seq               INTEGER NOT NULL,
		node_id           INTEGER NOT NULL,
		title             TEXT NOT NULL DEFAULT '',
		icon              TEXT NOT NULL DEFAULT '',
		text              TEXT NOT NULL DEFAULT '',
		x                 REAL NOT NULL DEFAULT 0,
		y                 REAL NOT NULL DEFAULT 0,
		image_url         TEXT NOT NULL DEFAULT '',
		image_id          INTEGER NOT NULL DEFAULT 0,
		image_layout_type TEXT NOT NULL DEFAULT '',
		type              TEXT NOT NULL DEFAULT '',
		props             TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_adventure ON adventure_nodes(adventure_id, seq);
	CREATE TABLE IF NOT EXISTS adventure_links (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		adventure_id INTEGER NOT NULL REFERENCES adventures(id) ON DELETE CASCADE,
		seq          INTEGER NOT NULL,
		link_id      INTEGER NOT NULL,
		source       INTEGER NOT NULL,
		source_title TEXT NOT NULL DEFAULT '',
		target       INTEGER NOT NULL,
		target_title TEXT NOT NULL DEFAULT '',
		type         TEXT NOT NULL DEFAULT '',
		props        TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_links_adventure ON adventure_links(adventure_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create stores a new adventure with a root node.
func (s *SQLiteStore) Create(ctx context.Context, title string) (adventure.AdventureDTO, error) {
	slug, viewSlug := s.newSlug(), s.newSlug()
	ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return adventure.AdventureDTO{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO adventures (slug, view_slug, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		slug, viewSlug, title, ts, ts)
	if err != nil {
		return adventure.AdventureDTO{}, fmt.Errorf("insert adventure: %w", err)
	}
	advID, err := res.LastInsertId()
	if err != nil {
		return adventure.AdventureDTO{}, err
	}
	if _, err := insertNode(ctx, tx, advID, 0, starterNode()); err != nil {
		return adventure.AdventureDTO{}, err
	}
	if err := tx.Commit(); err != nil {
		return adventure.AdventureDTO{}, err
	}

	log.Printf("[store] created adventure %q (%s)", title, slug)
	return s.load(ctx, slug)
}

// List returns every adventure without its content.
func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.title, a.slug, a.view_slug, a.locked, a.edit_version, a.updated_at,
			(SELECT COUNT(*) FROM adventure_nodes n WHERE n.adventure_id = a.id),
			(SELECT COUNT(*) FROM adventure_links l WHERE l.adventure_id = a.id)
		FROM adventures a ORDER BY a.updated_at DESC, a.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Slug, &sum.ViewSlug, &sum.Locked,
			&sum.EditVersion, &sum.UpdatedAt, &sum.NodeCount, &sum.LinkCount); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Load returns an adventure by edit or view slug. Loads by view slug count
// as views.
func (s *SQLiteStore) Load(ctx context.Context, slug string) (adventure.AdventureDTO, error) {
	dto, err := s.load(ctx, slug)
	if err != nil {
		return dto, err
	}
	if dto.Slug != slug {
		if _, err := s.db.ExecContext(ctx, `UPDATE adventures SET view_count = view_count + 1 WHERE id = ?`, int64(dto.ID)); err != nil {
			return adventure.AdventureDTO{}, fmt.Errorf("count view: %w", err)
		}
		dto.ViewCount++
		dto.Slug = ""
	}
	return dto, nil
}

// LoadForEdit bumps the edit version and returns the adventure.
func (s *SQLiteStore) LoadForEdit(ctx context.Context, slug string) (adventure.AdventureDTO, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE adventures SET edit_version = edit_version + 1 WHERE slug = ?`, slug)
	if err != nil {
		return adventure.AdventureDTO{}, fmt.Errorf("bump edit version: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return adventure.AdventureDTO{}, ErrNotFound
	}
	return s.load(ctx, slug)
}

// Save replaces the adventure content in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, slug string, dto adventure.AdventureDTO) (adventure.AdventureDTO, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return adventure.AdventureDTO{}, err
	}
	defer tx.Rollback()

	var advID int64
	var stored adventure.AdventureDTO
	err = tx.QueryRowContext(ctx, `SELECT id, locked, edit_version FROM adventures WHERE slug = ?`, slug).
		Scan(&advID, &stored.Locked, &stored.EditVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return adventure.AdventureDTO{}, ErrNotFound
	}
	if err != nil {
		return adventure.AdventureDTO{}, err
	}
	if err := checkSave(stored, dto); err != nil {
		return adventure.AdventureDTO{}, err
	}

	if err := syncNodes(ctx, tx, advID, dto.Nodes); err != nil {
		return adventure.AdventureDTO{}, err
	}
	if err := syncLinks(ctx, tx, advID, dto.Links); err != nil {
		return adventure.AdventureDTO{}, err
	}

	category, err := marshalNullable(dto.Category)
	if err != nil {
		return adventure.AdventureDTO{}, err
	}
	users, err := marshalNullable(dto.Users)
	if err != nil {
		return adventure.AdventureDTO{}, err
	}
	version := max(int(stored.EditVersion), int(dto.EditVersion)) + 1
	_, err = tx.ExecContext(ctx, `
		UPDATE adventures SET title = ?, description = ?, locked = ?, cover_url = ?, image_id = ?,
			props = ?, category = ?, users = ?, edit_version = ?, updated_at = ?
		WHERE id = ?`,
		dto.Title, dto.Description, dto.Locked, dto.CoverURL, int(dto.ImageID),
		dto.Props.String(), category, users, version, now(), advID)
	if err != nil {
		return adventure.AdventureDTO{}, fmt.Errorf("update adventure: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return adventure.AdventureDTO{}, err
	}
	return s.load(ctx, slug)
}

// syncNodes deletes nodes missing from nodes, updates known ones and
// inserts the new ones.
func syncNodes(ctx context.Context, tx *sql.Tx, advID int64, nodes []adventure.NodeDTO) error {
	keep := make([]interface{}, 0, len(nodes)+1)
	keep = append(keep, advID)
	for _, n := range nodes {
		if n.ID != 0 {
			keep = append(keep, int64(n.ID))
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM adventure_nodes WHERE adventure_id = ?`+notIn(len(keep)-1), keep...); err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}

	for seq, n := range nodes {
		if n.ID == 0 {
			if _, err := insertNode(ctx, tx, advID, seq, n); err != nil {
				return err
			}
			continue
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE adventure_nodes SET seq = ?, node_id = ?, title = ?, icon = ?, text = ?, x = ?, y = ?,
				image_url = ?, image_id = ?, image_layout_type = ?, type = ?, props = ?
			WHERE id = ? AND adventure_id = ?`,
			seq, int(n.NodeID), n.Title, n.Icon, n.Text, float64(n.X), float64(n.Y),
			n.ImageURL, int(n.ImageID), n.ImageLayoutType, n.Type, n.Props.String(),
			int64(n.ID), advID)
		if err != nil {
			return fmt.Errorf("update node %d: %w", n.NodeID, err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return fmt.Errorf("%w: node id %d does not belong to this adventure", ErrConflict, n.ID)
		}
	}
	return nil
}

func insertNode(ctx context.Context, tx *sql.Tx, advID int64, seq int, n adventure.NodeDTO) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO adventure_nodes (adventure_id, seq, node_id, title, icon, text, x, y,
			image_url, image_id, image_layout_type, type, props)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		advID, seq, int(n.NodeID), n.Title, n.Icon, n.Text, float64(n.X), float64(n.Y),
		n.ImageURL, int(n.ImageID), n.ImageLayoutType, n.Type, n.Props.String())
	if err != nil {
		return 0, fmt.Errorf("insert node %d: %w", n.NodeID, err)
	}
	return res.LastInsertId()
}

// syncLinks is syncNodes for links.
func syncLinks(ctx context.Context, tx *sql.Tx, advID int64, links []adventure.LinkDTO) error {
	keep := make([]interface{}, 0, len(links)+1)
	keep = append(keep, advID)
	for _, l := range links {
		if l.ID != 0 {
			keep = append(keep, int64(l.ID))
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM adventure_links WHERE adventure_id = ?`+notIn(len(keep)-1), keep...); err != nil {
		return fmt.Errorf("delete links: %w", err)
	}

	for seq, l := range links {
		if l.ID == 0 {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO adventure_links (adventure_id, seq, link_id, source, source_title,
					target, target_title, type, props)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				advID, seq, int(l.LinkID), int(l.Source), l.SourceTitle,
				int(l.Target), l.TargetTitle, l.Type, l.Props.String())
			if err != nil {
				return fmt.Errorf("insert link %d: %w", l.LinkID, err)
			}
			continue
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE adventure_links SET seq = ?, link_id = ?, source = ?, source_title = ?,
				target = ?, target_title = ?, type = ?, props = ?
			WHERE id = ? AND adventure_id = ?`,
			seq, int(l.LinkID), int(l.Source), l.SourceTitle,
			int(l.Target), l.TargetTitle, l.Type, l.Props.String(),
			int64(l.ID), advID)
		if err != nil {
			return fmt.Errorf("update link %d: %w", l.LinkID, err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return fmt.Errorf("%w: link id %d does not belong to this adventure", ErrConflict, l.ID)
		}
	}
	return nil
}

// notIn returns an "AND id NOT IN (...)" clause for n placeholders.
func notIn(n int) string {
	if n == 0 {
		return ""
	}
	return " AND id NOT IN (" + strings.TrimSuffix(strings.Repeat("?,", n), ",") + ")"
}

func marshalNullable(v interface{}) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	if string(data) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// load reads a full adventure by edit or view slug.
func (s *SQLiteStore) load(ctx context.Context, slug string) (adventure.AdventureDTO, error) {
	var dto adventure.AdventureDTO
	var advID int64
	var propsText string
	var category, users sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, view_slug, title, description, locked, cover_url, image_id, props,
			category, users, edit_version, view_count, created_at, updated_at
		FROM adventures WHERE slug = ? OR view_slug = ?`, slug, slug).Scan(
		&advID, &dto.Slug, &dto.ViewSlug, &dto.Title, &dto.Description, &dto.Locked,
		&dto.CoverURL, &dto.ImageID, &propsText, &category, &users,
		&dto.EditVersion, &dto.ViewCount, &dto.CreatedAt, &dto.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return adventure.AdventureDTO{}, ErrNotFound
	}
	if err != nil {
		return adventure.AdventureDTO{}, err
	}
	dto.ID = adventure.FlexInt(advID)
	dto.Props = adventure.PropsString(propsText)
	if category.Valid {
		if err := json.Unmarshal([]byte(category.String), &dto.Category); err != nil {
			return adventure.AdventureDTO{}, fmt.Errorf("decode category: %w", err)
		}
	}
	dto.Users = []adventure.UserDTO{}
	if users.Valid {
		if err := json.Unmarshal([]byte(users.String), &dto.Users); err != nil {
			return adventure.AdventureDTO{}, fmt.Errorf("decode users: %w", err)
		}
	}

	if dto.Nodes, err = s.loadNodes(ctx, advID); err != nil {
		return adventure.AdventureDTO{}, err
	}
	if dto.Links, err = s.loadLinks(ctx, advID); err != nil {
		return adventure.AdventureDTO{}, err
	}
	return dto, nil
}

func (s *SQLiteStore) loadNodes(ctx context.Context, advID int64) ([]adventure.NodeDTO, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, node_id, title, icon, text, x, y, image_url, image_id, image_layout_type, type, props
		FROM adventure_nodes WHERE adventure_id = ? ORDER BY seq, id`, advID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := []adventure.NodeDTO{}
	for rows.Next() {
		var n adventure.NodeDTO
		var propsText string
		if err := rows.Scan(&n.ID, &n.NodeID, &n.Title, &n.Icon, &n.Text, &n.X, &n.Y,
			&n.ImageURL, &n.ImageID, &n.ImageLayoutType, &n.Type, &propsText); err != nil {
			return nil, err
		}
		n.Props = adventure.PropsString(propsText)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (s *SQLiteStore) loadLinks(ctx context.Context, advID int64) ([]adventure.LinkDTO, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, link_id, source, source_title, target, target_title, type, props
		FROM adventure_links WHERE adventure_id = ? ORDER BY seq, id`, advID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := []adventure.LinkDTO{}
	for rows.Next() {
		var l adventure.LinkDTO
		var propsText string
		if err := rows.Scan(&l.ID, &l.LinkID, &l.Source, &l.SourceTitle, &l.Target,
			&l.TargetTitle, &l.Type, &propsText); err != nil {
			return nil, err
		}
		l.Props = adventure.PropsString(propsText)
		links = append(links, l)
	}
	return links, rows.Err()
}

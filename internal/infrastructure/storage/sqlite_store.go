package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/1v1expert/AnalogPro/internal/domain"
)

// maxInParams bounds the number of ids bound into one IN (...) list
const maxInParams = 500

// SQLiteConfig holds connection settings for the SQLite catalog
type SQLiteConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// SQLiteStore is a catalog persisted in SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database and applies the schema
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path must not be empty")
	}

	inMemory := cfg.Path == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d", cfg.Path, busy.Milliseconds())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to :memory: is a separate database
	if inMemory {
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying connection pool
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS manufacturers (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	short_title TEXT NOT NULL DEFAULT '',
	trusted INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY,
	parent_id INTEGER REFERENCES categories(id),
	title TEXT NOT NULL,
	short_title TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS attributes (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	type TEXT NOT NULL,
	unit TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 0,
	is_fixed INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS category_attributes (
	category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	attribute_id INTEGER NOT NULL REFERENCES attributes(id),
	PRIMARY KEY (category_id, attribute_id)
);
CREATE TABLE IF NOT EXISTS fixed_values (
	id INTEGER PRIMARY KEY,
	attribute_id INTEGER NOT NULL REFERENCES attributes(id),
	title TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	article TEXT NOT NULL,
	additional_article TEXT NOT NULL DEFAULT '',
	series TEXT NOT NULL DEFAULT '',
	manufacturer_id INTEGER NOT NULL REFERENCES manufacturers(id),
	category_id INTEGER NOT NULL REFERENCES categories(id),
	irrelevant INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_products_category_manufacturer ON products (category_id, manufacturer_id);
CREATE INDEX IF NOT EXISTS idx_products_article ON products (article);
CREATE TABLE IF NOT EXISTS attribute_values (
	id INTEGER PRIMARY KEY,
	product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	attribute_id INTEGER NOT NULL REFERENCES attributes(id),
	fixed_value_id INTEGER REFERENCES fixed_values(id),
	un_value REAL,
	UNIQUE (product_id, attribute_id),
	CHECK ((fixed_value_id IS NULL) <> (un_value IS NULL))
);
CREATE INDEX IF NOT EXISTS idx_attribute_values_attribute ON attribute_values (attribute_id, product_id);
CREATE TABLE IF NOT EXISTS alternative_categories (
	id INTEGER PRIMARY KEY,
	original_id INTEGER NOT NULL REFERENCES categories(id),
	alternative_id INTEGER NOT NULL REFERENCES categories(id),
	UNIQUE (original_id, alternative_id)
);
CREATE TABLE IF NOT EXISTS analog_cache (
	product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	manufacturer_id INTEGER NOT NULL,
	analog_id INTEGER NOT NULL,
	audit_ids TEXT NOT NULL DEFAULT '[]',
	category_id INTEGER NOT NULL,
	computed_at TIMESTAMP NOT NULL,
	computed_by TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (product_id, manufacturer_id)
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// GetProduct returns the product including its analog cache
func (s *SQLiteStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
SELECT id, title, article, additional_article, series, manufacturer_id, category_id, irrelevant
FROM products WHERE id = ?`, id).Scan(
		&p.ID, &p.Title, &p.Article, &p.AdditionalArticle, &p.Series, &p.ManufacturerID, &p.CategoryID, &p.Irrelevant)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %d: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT manufacturer_id, analog_id, audit_ids, category_id, computed_at, computed_by
FROM analog_cache WHERE product_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load analog cache of product %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry domain.AnalogCacheEntry
			audit string
		)
		if err := rows.Scan(&entry.ManufacturerID, &entry.AnalogID, &audit, &entry.CategoryID, &entry.ComputedAt, &entry.ComputedBy); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(audit), &entry.AuditIDs); err != nil {
			return nil, fmt.Errorf("%w: audit ids of product %d: %v", domain.ErrDataIntegrity, id, err)
		}
		if p.Analogs == nil {
			p.Analogs = make(map[int64]domain.AnalogCacheEntry)
		}
		p.Analogs[entry.ManufacturerID] = entry
	}
	return &p, rows.Err()
}

// FindProducts returns the products of a manufacturer in a category
func (s *SQLiteStore) FindProducts(ctx context.Context, categoryID, manufacturerID int64, excludeIrrelevant bool) ([]int64, error) {
	query := `SELECT id FROM products WHERE category_id = ? AND manufacturer_id = ?`
	if excludeIrrelevant {
		query += ` AND irrelevant = 0`
	}
	return s.queryIDs(ctx, query+` ORDER BY id`, categoryID, manufacturerID)
}

// FindProductsByArticle looks products up by article, optionally within one manufacturer
func (s *SQLiteStore) FindProductsByArticle(ctx context.Context, article string, manufacturerID int64) ([]int64, error) {
	query := `SELECT id FROM products WHERE article = ?`
	args := []any{strings.TrimSpace(article)}
	if manufacturerID != 0 {
		query += ` AND manufacturer_id = ?`
		args = append(args, manufacturerID)
	}
	return s.queryIDs(ctx, query+` ORDER BY id`, args...)
}

// ListProductsByManufacturer returns every product of a manufacturer
func (s *SQLiteStore) ListProductsByManufacturer(ctx context.Context, manufacturerID int64) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT id FROM products WHERE manufacturer_id = ? ORDER BY id`, manufacturerID)
}

// GetManufacturer returns a manufacturer by id
func (s *SQLiteStore) GetManufacturer(ctx context.Context, id int64) (*domain.Manufacturer, error) {
	var m domain.Manufacturer
	err := s.db.QueryRowContext(ctx, `SELECT id, title, short_title, trusted FROM manufacturers WHERE id = ?`, id).
		Scan(&m.ID, &m.Title, &m.ShortTitle, &m.Trusted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrManufacturerNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load manufacturer %d: %w", id, err)
	}
	return &m, nil
}

// ListManufacturers returns manufacturers ordered by id
func (s *SQLiteStore) ListManufacturers(ctx context.Context, trustedOnly bool) ([]domain.Manufacturer, error) {
	query := `SELECT id, title, short_title, trusted FROM manufacturers`
	if trustedOnly {
		query += ` WHERE trusted = 1`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list manufacturers: %w", err)
	}
	defer rows.Close()

	var out []domain.Manufacturer
	for rows.Next() {
		var m domain.Manufacturer
		if err := rows.Scan(&m.ID, &m.Title, &m.ShortTitle, &m.Trusted); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetCategory returns a category with its attribute ids
func (s *SQLiteStore) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	var (
		c      domain.Category
		parent sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, parent_id, title, short_title FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &parent, &c.Title, &c.ShortTitle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrCategoryNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load category %d: %w", id, err)
	}
	c.ParentID = parent.Int64

	c.AttributeIDs, err = s.queryIDs(ctx, `SELECT attribute_id FROM category_attributes WHERE category_id = ? ORDER BY attribute_id`, id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCategoryAttributes returns the attributes a category defines, ordered by id
func (s *SQLiteStore) GetCategoryAttributes(ctx context.Context, categoryID int64) ([]domain.Attribute, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id = ?`, categoryID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrCategoryNotFound, categoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load category %d: %w", categoryID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT a.id, a.title, a.type, a.unit, a.priority, a.is_fixed
FROM attributes a
JOIN category_attributes ca ON ca.attribute_id = a.id
WHERE ca.category_id = ?
ORDER BY a.id`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attributes of category %d: %w", categoryID, err)
	}
	defer rows.Close()
	return scanAttributes(rows)
}

// GetAlternativeCategories returns alternatives in registration order
func (s *SQLiteStore) GetAlternativeCategories(ctx context.Context, categoryID int64) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT alternative_id FROM alternative_categories WHERE original_id = ? ORDER BY id`, categoryID)
}

// GetAttributeValues returns the product's values joined with attributes, ordered by attribute id
func (s *SQLiteStore) GetAttributeValues(ctx context.Context, productID int64) ([]domain.AttributeValueRow, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, productID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrProductNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %d: %w", productID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT a.id, a.title, a.type, a.unit, a.priority, a.is_fixed, v.fixed_value_id, v.un_value, COALESCE(f.title, '')
FROM attribute_values v
JOIN attributes a ON a.id = v.attribute_id
LEFT JOIN fixed_values f ON f.id = v.fixed_value_id
WHERE v.product_id = ?
ORDER BY a.id`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load values of product %d: %w", productID, err)
	}
	defer rows.Close()

	var out []domain.AttributeValueRow
	for rows.Next() {
		var (
			row     domain.AttributeValueRow
			attType string
			fixed   sql.NullInt64
			numeric sql.NullFloat64
		)
		if err := rows.Scan(&row.Attribute.ID, &row.Attribute.Title, &attType, &row.Attribute.Unit,
			&row.Attribute.Priority, &row.Attribute.IsFixed, &fixed, &numeric, &row.FixedTitle); err != nil {
			return nil, err
		}
		row.Attribute.Type = domain.AttributeType(attType)
		row.Value = valueFromColumns(fixed, numeric)
		out = append(out, row)
	}
	return out, rows.Err()
}

// FilterAttributeValues keeps the products within the set that hold exactly value
func (s *SQLiteStore) FilterAttributeValues(ctx context.Context, attributeID int64, value domain.Value, within []int64) ([]int64, error) {
	var column string
	var arg any
	switch {
	case value.FixedValueID != nil:
		column, arg = "fixed_value_id", *value.FixedValueID
	case value.Numeric != nil:
		column, arg = "un_value", *value.Numeric
	default:
		return nil, fmt.Errorf("%w: empty filter value for attribute %d", domain.ErrDataIntegrity, attributeID)
	}

	matched := make(map[int64]struct{}, len(within))
	for _, chunk := range chunkIDs(within) {
		query := fmt.Sprintf(`SELECT product_id FROM attribute_values WHERE attribute_id = ? AND %s = ? AND product_id IN (%s)`,
			column, placeholders(len(chunk)))
		args := append([]any{attributeID, arg}, idArgs(chunk)...)
		ids, err := s.queryIDs(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			matched[id] = struct{}{}
		}
	}

	out := make([]int64, 0, len(matched))
	for _, id := range within {
		if _, ok := matched[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// ListAttributeValues returns the values of one attribute held by products within the set
func (s *SQLiteStore) ListAttributeValues(ctx context.Context, attributeID int64, within []int64) ([]domain.AttributeValue, error) {
	byProduct := make(map[int64]domain.AttributeValue, len(within))
	for _, chunk := range chunkIDs(within) {
		query := fmt.Sprintf(`SELECT id, product_id, fixed_value_id, un_value FROM attribute_values WHERE attribute_id = ? AND product_id IN (%s)`,
			placeholders(len(chunk)))
		rows, err := s.db.QueryContext(ctx, query, append([]any{attributeID}, idArgs(chunk)...)...)
		if err != nil {
			return nil, fmt.Errorf("failed to list values of attribute %d: %w", attributeID, err)
		}
		for rows.Next() {
			var (
				v       domain.AttributeValue
				fixed   sql.NullInt64
				numeric sql.NullFloat64
			)
			if err := rows.Scan(&v.ID, &v.ProductID, &fixed, &numeric); err != nil {
				rows.Close()
				return nil, err
			}
			v.AttributeID = attributeID
			v.Value = valueFromColumns(fixed, numeric)
			byProduct[v.ProductID] = v
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}

	out := make([]domain.AttributeValue, 0, len(byProduct))
	for _, id := range within {
		if v, ok := byProduct[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// SaveCachedAnalog replaces the product's cache entry for the entry's manufacturer
func (s *SQLiteStore) SaveCachedAnalog(ctx context.Context, productID int64, entry domain.AnalogCacheEntry) error {
	audit := entry.AuditIDs
	if audit == nil {
		audit = []int64{}
	}
	payload, err := json.Marshal(audit)
	if err != nil {
		return fmt.Errorf("failed to encode audit ids: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO analog_cache (product_id, manufacturer_id, analog_id, audit_ids, category_id, computed_at, computed_by)
SELECT id, ?, ?, ?, ?, ?, ? FROM products WHERE id = ?
ON CONFLICT (product_id, manufacturer_id) DO UPDATE SET
	analog_id = excluded.analog_id,
	audit_ids = excluded.audit_ids,
	category_id = excluded.category_id,
	computed_at = excluded.computed_at,
	computed_by = excluded.computed_by`,
		entry.ManufacturerID, entry.AnalogID, string(payload), entry.CategoryID, entry.ComputedAt.UTC(), entry.ComputedBy, productID)
	if err != nil {
		return fmt.Errorf("failed to save analog of product %d: %w", productID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %d", domain.ErrProductNotFound, productID)
	}
	return nil
}

// SaveManufacturer inserts or replaces a manufacturer
func (s *SQLiteStore) SaveManufacturer(ctx context.Context, m domain.Manufacturer) (int64, error) {
	return s.upsert(ctx, m.ID, `
INSERT INTO manufacturers (id, title, short_title, trusted) VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET title = excluded.title, short_title = excluded.short_title, trusted = excluded.trusted`,
		nullID(m.ID), m.Title, m.ShortTitle, m.Trusted)
}

// SaveCategory inserts or replaces a category and its attribute set
func (s *SQLiteStore) SaveCategory(ctx context.Context, c domain.Category) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if c.ParentID != 0 {
		if err := mustExist(ctx, tx, "categories", c.ParentID, domain.ErrCategoryNotFound); err != nil {
			return 0, err
		}
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO categories (id, parent_id, title, short_title) VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET parent_id = excluded.parent_id, title = excluded.title, short_title = excluded.short_title`,
		nullID(c.ID), nullID(c.ParentID), c.Title, c.ShortTitle)
	if err != nil {
		return 0, fmt.Errorf("failed to save category %q: %w", c.Title, err)
	}
	id, err := resolveID(res, c.ID)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM category_attributes WHERE category_id = ?`, id); err != nil {
		return 0, err
	}
	for _, attrID := range c.AttributeIDs {
		if err := mustExist(ctx, tx, "attributes", attrID, domain.ErrAttributeNotFound); err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO category_attributes (category_id, attribute_id) VALUES (?, ?)`, id, attrID); err != nil {
			return 0, err
		}
	}
	return id, tx.Commit()
}

// SaveAttribute inserts or replaces an attribute
func (s *SQLiteStore) SaveAttribute(ctx context.Context, a domain.Attribute) (int64, error) {
	if !a.Type.Valid() {
		return 0, fmt.Errorf("%w: unknown attribute type %q", domain.ErrInvalidRequest, a.Type)
	}
	return s.upsert(ctx, a.ID, `
INSERT INTO attributes (id, title, type, unit, priority, is_fixed) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET title = excluded.title, type = excluded.type, unit = excluded.unit,
	priority = excluded.priority, is_fixed = excluded.is_fixed`,
		nullID(a.ID), a.Title, string(a.Type), a.Unit, a.Priority, a.IsFixed)
}

// SaveFixedValue inserts or replaces an enumerated value
func (s *SQLiteStore) SaveFixedValue(ctx context.Context, v domain.FixedValue) (int64, error) {
	var isFixed bool
	err := s.db.QueryRowContext(ctx, `SELECT is_fixed FROM attributes WHERE id = ?`, v.AttributeID).Scan(&isFixed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: id %d", domain.ErrAttributeNotFound, v.AttributeID)
	}
	if err != nil {
		return 0, err
	}
	if !isFixed {
		return 0, fmt.Errorf("%w: attribute %d is continuous", domain.ErrDataIntegrity, v.AttributeID)
	}
	return s.upsert(ctx, v.ID, `
INSERT INTO fixed_values (id, attribute_id, title) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET attribute_id = excluded.attribute_id, title = excluded.title`,
		nullID(v.ID), v.AttributeID, v.Title)
}

// SaveAlternativeCategory registers an alternative category
func (s *SQLiteStore) SaveAlternativeCategory(ctx context.Context, alt domain.AlternativeCategory) error {
	for _, id := range []int64{alt.OriginalID, alt.AlternativeID} {
		if err := mustExist(ctx, s.db, "categories", id, domain.ErrCategoryNotFound); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO alternative_categories (original_id, alternative_id) VALUES (?, ?)`,
		alt.OriginalID, alt.AlternativeID)
	return err
}

// SaveProduct inserts or replaces a product together with its attribute values.
// The analog cache of an existing product is preserved.
func (s *SQLiteStore) SaveProduct(ctx context.Context, p domain.Product, values []domain.AttributeValue) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := mustExist(ctx, tx, "manufacturers", p.ManufacturerID, domain.ErrManufacturerNotFound); err != nil {
		return 0, err
	}
	if err := mustExist(ctx, tx, "categories", p.CategoryID, domain.ErrCategoryNotFound); err != nil {
		return 0, err
	}
	for _, v := range values {
		if err := checkValue(ctx, tx, v); err != nil {
			return 0, err
		}
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO products (id, title, article, additional_article, series, manufacturer_id, category_id, irrelevant)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET title = excluded.title, article = excluded.article,
	additional_article = excluded.additional_article, series = excluded.series,
	manufacturer_id = excluded.manufacturer_id, category_id = excluded.category_id, irrelevant = excluded.irrelevant`,
		nullID(p.ID), p.Title, strings.TrimSpace(p.Article), p.AdditionalArticle, p.Series, p.ManufacturerID, p.CategoryID, p.Irrelevant)
	if err != nil {
		return 0, fmt.Errorf("failed to save product %q: %w", p.Article, err)
	}
	id, err := resolveID(res, p.ID)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM attribute_values WHERE product_id = ?`, id); err != nil {
		return 0, err
	}
	for _, v := range values {
		_, err := tx.ExecContext(ctx, `
INSERT INTO attribute_values (product_id, attribute_id, fixed_value_id, un_value) VALUES (?, ?, ?, ?)
ON CONFLICT (product_id, attribute_id) DO UPDATE SET fixed_value_id = excluded.fixed_value_id, un_value = excluded.un_value`,
			id, v.AttributeID, nullableFixed(v.Value), nullableNumeric(v.Value))
		if err != nil {
			return 0, fmt.Errorf("failed to save value of attribute %d: %w", v.AttributeID, err)
		}
	}
	return id, tx.Commit()
}

// FindManufacturerByTitle matches a title case-insensitively, falling back to a unique substring match
func (s *SQLiteStore) FindManufacturerByTitle(ctx context.Context, title string) (*domain.Manufacturer, error) {
	all, err := s.ListManufacturers(ctx, false)
	if err != nil {
		return nil, err
	}
	return pickManufacturer(all, title)
}

// FindCategoryByTitle finds a category by its title and its parent's title
func (s *SQLiteStore) FindCategoryByTitle(ctx context.Context, parentTitle, title string) (*domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.id, c.parent_id, c.title, c.short_title, COALESCE(p.title, '')
FROM categories c
LEFT JOIN categories p ON p.id = c.parent_id
ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var all []titledCategory
	for rows.Next() {
		var (
			tc     titledCategory
			parent sql.NullInt64
		)
		if err := rows.Scan(&tc.ID, &parent, &tc.Title, &tc.ShortTitle, &tc.ParentTitle); err != nil {
			return nil, err
		}
		tc.ParentID = parent.Int64
		all = append(all, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	found, err := pickCategory(all, parentTitle, title)
	if err != nil {
		return nil, err
	}
	return s.GetCategory(ctx, found.ID)
}

// FindAttribute finds an attribute of a category by type and title
func (s *SQLiteStore) FindAttribute(ctx context.Context, categoryID int64, attrType domain.AttributeType, title string) (*domain.Attribute, error) {
	attrs, err := s.GetCategoryAttributes(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return pickAttribute(attrs, categoryID, attrType, title)
}

// FindFixedValue finds an enumerated value of an attribute by title
func (s *SQLiteStore) FindFixedValue(ctx context.Context, attributeID int64, title string) (*domain.FixedValue, error) {
	var v domain.FixedValue
	err := s.db.QueryRowContext(ctx, `SELECT id, attribute_id, title FROM fixed_values WHERE attribute_id = ? AND title = ? ORDER BY id LIMIT 1`,
		attributeID, strings.TrimSpace(title)).Scan(&v.ID, &v.AttributeID, &v.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: fixed value %q of attribute %d", domain.ErrAttributeNotFound, title, attributeID)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) upsert(ctx context.Context, given int64, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return resolveID(res, given)
}

func resolveID(res sql.Result, given int64) (int64, error) {
	if given > 0 {
		return given, nil
	}
	return res.LastInsertId()
}

// mustExist checks a row by id; table is always a package constant
func mustExist(ctx context.Context, q queryer, table string, id int64, notFound error) error {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: id %d", notFound, id)
	}
	return err
}

func checkValue(ctx context.Context, q queryer, v domain.AttributeValue) error {
	var (
		a       domain.Attribute
		attType string
	)
	err := q.QueryRowContext(ctx, `SELECT id, title, type, unit, priority, is_fixed FROM attributes WHERE id = ?`, v.AttributeID).
		Scan(&a.ID, &a.Title, &attType, &a.Unit, &a.Priority, &a.IsFixed)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: id %d", domain.ErrAttributeNotFound, v.AttributeID)
	}
	if err != nil {
		return err
	}
	a.Type = domain.AttributeType(attType)
	if err := v.Value.CheckKind(a); err != nil {
		return err
	}
	if v.Value.FixedValueID == nil {
		return nil
	}

	var owner int64
	err = q.QueryRowContext(ctx, `SELECT attribute_id FROM fixed_values WHERE id = ?`, *v.Value.FixedValueID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != a.ID) {
		return fmt.Errorf("%w: fixed value %d does not belong to attribute %d", domain.ErrDataIntegrity, *v.Value.FixedValueID, a.ID)
	}
	return err
}

func scanAttributes(rows *sql.Rows) ([]domain.Attribute, error) {
	var out []domain.Attribute
	for rows.Next() {
		var (
			a       domain.Attribute
			attType string
		)
		if err := rows.Scan(&a.ID, &a.Title, &attType, &a.Unit, &a.Priority, &a.IsFixed); err != nil {
			return nil, err
		}
		a.Type = domain.AttributeType(attType)
		out = append(out, a)
	}
	return out, rows.Err()
}

func valueFromColumns(fixed sql.NullInt64, numeric sql.NullFloat64) domain.Value {
	switch {
	case fixed.Valid:
		return domain.FixedRef(fixed.Int64)
	case numeric.Valid:
		return domain.Numeric(numeric.Float64)
	default:
		return domain.Value{}
	}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

func nullableFixed(v domain.Value) sql.NullInt64 {
	if v.FixedValueID == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v.FixedValueID, Valid: true}
}

func nullableNumeric(v domain.Value) sql.NullFloat64 {
	if v.Numeric == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v.Numeric, Valid: true}
}

func chunkIDs(ids []int64) [][]int64 {
	var chunks [][]int64
	for len(ids) > maxInParams {
		chunks = append(chunks, ids[:maxInParams])
		ids = ids[maxInParams:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

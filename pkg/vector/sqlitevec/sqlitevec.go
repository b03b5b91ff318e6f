// Package sqlitevec provides an embedded, file-backed vector store using
// sqlite-vec. One database file holds any number of named collections, each
// with its own KNN index, so a single persist directory can carry e.g. a
// "with_context" and a "without_context" collection side by side.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/contextlab/ragstore/pkg/vector"
)

// DBFileName is the database file created inside a persist directory.
const DBFileName = "ragstore.db"

// Store implements vector.Store using SQLite with sqlite-vec.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Config holds configuration for the sqlite-vec store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string
}

// PathInDir returns the database file path for a persist directory.
func PathInDir(persistDir string) string {
	return filepath.Join(persistDir, DBFileName)
}

// NewStore opens (creating if needed) a sqlite-vec backed store.
func NewStore(c Config, logger *zap.Logger) (*Store, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if logger == nil {
		logger = zap.NewNop()
	}

	if c.DBPath == "" {
		return nil, fmt.Errorf("%w: database path is required", vector.ErrConnection)
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrConnection, err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrConnection, err)
	}

	// Collection registry. Each collection gets its own vec0 virtual table,
	// created on first write once the embedding dimensionality is known.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS collections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			dimensions INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating collections table: %v", vector.ErrWrite, err)
	}

	// Passage rows. vec0 virtual tables use integer rowids, so this table
	// also maps string passage IDs to the integer rowids shared with the
	// per-collection vec0 table.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS passages (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			collection_id INTEGER NOT NULL REFERENCES collections(id),
			passage_id TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			UNIQUE(collection_id, passage_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating passages table: %v", vector.ErrWrite, err)
	}

	logger.Debug("sqlite-vec store opened",
		zap.String("db_path", c.DBPath),
		zap.String("vec_version", vecVersion),
	)

	return &Store{
		db:     db,
		logger: logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// vecTable returns the vec0 virtual table name for a collection row.
func vecTable(collectionID int64) string {
	return fmt.Sprintf("vec_passages_%d", collectionID)
}

// Collections lists the names of all collections in the store.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing collections: %v", vector.ErrRead, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: scanning collection name: %v", vector.ErrRead, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating collections: %v", vector.ErrRead, err)
	}
	return names, nil
}

// lookupCollection returns the rowid and dimensionality of a collection, or
// vector.ErrCollectionNotFound.
func (s *Store) lookupCollection(ctx context.Context, name string) (int64, int, error) {
	var id int64
	var dims int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, dimensions FROM collections WHERE name = ?`, name,
	).Scan(&id, &dims)
	switch err {
	case nil:
		return id, dims, nil
	case sql.ErrNoRows:
		return 0, 0, fmt.Errorf("%w: %q", vector.ErrCollectionNotFound, name)
	default:
		return 0, 0, fmt.Errorf("%w: looking up collection %q: %v", vector.ErrRead, name, err)
	}
}

// ensureCollection returns the rowid and dimensionality of the named
// collection, creating it (and its vec0 table) if absent.
func (s *Store) ensureCollection(ctx context.Context, name string, dims int) (int64, int, error) {
	id, existingDims, err := s.lookupCollection(ctx, name)
	if err == nil {
		return id, existingDims, nil
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO collections(name, dimensions) VALUES (?, ?)`, name, dims,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: creating collection %q: %v", vector.ErrWrite, name, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: creating collection %q: %v", vector.ErrWrite, name, err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d] distance_metric=cosine)`,
		vecTable(id), dims,
	)
	if _, err := s.db.ExecContext(ctx, createVec); err != nil {
		return 0, 0, fmt.Errorf("%w: creating vec0 table for collection %q: %v", vector.ErrWrite, name, err)
	}

	s.logger.Info("created collection",
		zap.String("collection", name),
		zap.Int("dimensions", dims),
	)

	return id, dims, nil
}

// Add writes documents into the named collection, creating it on first
// write. A document whose ID already exists in the collection is updated in
// place.
func (s *Store) Add(ctx context.Context, collection string, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	collID, dims, err := s.ensureCollection(ctx, collection, len(docs[0].Embedding))
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", vector.ErrWrite, err)
	}
	defer tx.Rollback()

	vt := vecTable(collID)
	for _, doc := range docs {
		if len(doc.Embedding) != dims {
			return fmt.Errorf("%w: document %s has %d dimensions, collection %q expects %d",
				vector.ErrWrite, doc.ID, len(doc.Embedding), collection, dims)
		}

		metaJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("%w: encoding metadata for doc %s: %v", vector.ErrWrite, doc.ID, err)
		}
		embBlob := serializeFloat32(doc.Embedding)

		// Check if the passage already exists
		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM passages WHERE collection_id = ? AND passage_id = ?`,
			collID, doc.ID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			// Passage exists — update content, metadata and embedding
			if _, err := tx.ExecContext(ctx,
				`UPDATE passages SET content = ?, metadata = ? WHERE rowid = ?`,
				doc.Content, string(metaJSON), existingRowID,
			); err != nil {
				return fmt.Errorf("%w: updating passage %s: %v", vector.ErrWrite, doc.ID, err)
			}

			// Update embedding via DELETE + INSERT (vec0 does not support UPDATE)
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, vt), existingRowID,
			); err != nil {
				return fmt.Errorf("%w: deleting old embedding for passage %s: %v", vector.ErrWrite, doc.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, vt),
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("%w: re-inserting embedding for passage %s: %v", vector.ErrWrite, doc.ID, err)
			}
		case sql.ErrNoRows:
			// New passage — insert the row first to get the rowid
			result, err := tx.ExecContext(ctx,
				`INSERT INTO passages(collection_id, passage_id, content, metadata) VALUES (?, ?, ?, ?)`,
				collID, doc.ID, doc.Content, string(metaJSON),
			)
			if err != nil {
				return fmt.Errorf("%w: inserting passage %s: %v", vector.ErrWrite, doc.ID, err)
			}
			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("%w: getting rowid for passage %s: %v", vector.ErrWrite, doc.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, vt),
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("%w: inserting embedding for passage %s: %v", vector.ErrWrite, doc.ID, err)
			}
		default:
			return fmt.Errorf("%w: checking for existing passage %s: %v", vector.ErrWrite, doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", vector.ErrWrite, err)
	}

	s.logger.Debug("added passages",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)

	return nil
}

// Query returns the k nearest passages in the named collection under cosine
// distance, closest first.
func (s *Store) Query(ctx context.Context, collection string, embedding []float32, k int) ([]vector.QueryResult, error) {
	if k <= 0 {
		k = 4
	}

	collID, _, err := s.lookupCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	queryBlob := serializeFloat32(embedding)

	// KNN via vec0 MATCH, then JOIN back for passage text and metadata.
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT
			p.passage_id,
			p.content,
			p.metadata,
			v.distance
		FROM %s v
		INNER JOIN passages p ON p.rowid = v.rowid
		WHERE v.embedding MATCH ?
			AND v.k = ?
		ORDER BY v.distance
	`, vecTable(collID)), queryBlob, k)
	if err != nil {
		return nil, fmt.Errorf("%w: querying vectors: %v", vector.ErrRead, err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var passageID, content, metaJSON string
		var distance float64
		if err := rows.Scan(&passageID, &content, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("%w: scanning query result: %v", vector.ErrRead, err)
		}

		var meta map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("%w: decoding metadata for passage %s: %v", vector.ErrRead, passageID, err)
		}

		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID: passageID,
				Passage: vector.Passage{
					Content:  content,
					Metadata: meta,
				},
			},
			Distance: float32(distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating query results: %v", vector.ErrRead, err)
	}

	s.logger.Debug("queried collection",
		zap.String("collection", collection),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Get retrieves documents by ID from the named collection. IDs with no
// matching passage are skipped.
func (s *Store) Get(ctx context.Context, collection string, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	collID, _, err := s.lookupCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	vt := vecTable(collID)
	docs := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		var rowID int64
		var content, metaJSON string
		err := s.db.QueryRowContext(ctx,
			`SELECT rowid, content, metadata FROM passages WHERE collection_id = ? AND passage_id = ?`,
			collID, id,
		).Scan(&rowID, &content, &metaJSON)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading passage %s: %v", vector.ErrRead, id, err)
		}

		var meta map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("%w: decoding metadata for passage %s: %v", vector.ErrRead, id, err)
		}

		doc := vector.Document{
			ID: id,
			Passage: vector.Passage{
				Content:  content,
				Metadata: meta,
			},
		}

		var embBlob []byte
		err = s.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT embedding FROM %s WHERE rowid = ?`, vt), rowID,
		).Scan(&embBlob)
		if err == nil && len(embBlob) > 0 {
			doc.Embedding, _ = deserializeFloat32(embBlob)
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

// Delete removes passages by ID from the named collection. Deletion is an
// administrative operation; the ingestion and retrieval pipelines never call
// it.
func (s *Store) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	collID, _, err := s.lookupCollection(ctx, collection)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", vector.ErrWrite, err)
	}
	defer tx.Rollback()

	vt := vecTable(collID)
	for _, id := range ids {
		var rowID int64
		err := tx.QueryRowContext(ctx,
			`SELECT rowid FROM passages WHERE collection_id = ? AND passage_id = ?`,
			collID, id,
		).Scan(&rowID)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: looking up passage %s: %v", vector.ErrWrite, id, err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, vt), rowID,
		); err != nil {
			return fmt.Errorf("%w: deleting embedding for passage %s: %v", vector.ErrWrite, id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM passages WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("%w: deleting passage %s: %v", vector.ErrWrite, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", vector.ErrWrite, err)
	}

	s.logger.Debug("deleted passages",
		zap.String("collection", collection),
		zap.Int("count", len(ids)),
	)

	return nil
}

// Close releases resources held by the store.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ vector.Store = (*Store)(nil)

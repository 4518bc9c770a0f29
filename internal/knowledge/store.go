package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"portfoliogo/internal/logger"
	"portfoliogo/internal/models"
	"portfoliogo/internal/worker"
)

// DefaultSearchLimit caps search results when the caller passes no limit.
const DefaultSearchLimit = 5

// Embedder turns text into a fixed-length vector. A nil embedder disables
// the semantic search path entirely.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Store persists and retrieves knowledge entries. Retrieval prefers
// embedding-similarity ranking and degrades to substring matching when no
// embedder is configured or no stored entry carries a vector. The substring
// path is a documented fallback, not a placeholder.
type Store struct {
	db       *sql.DB
	embedder Embedder
	log      *logger.Logger
	docsDir  string
	pool     *worker.Pool
}

// Option configures optional store collaborators.
type Option func(*Store)

// WithDocsDir ingests .md/.txt files from dir as manual entries on rebuild.
func WithDocsDir(dir string) Option {
	return func(s *Store) { s.docsDir = dir }
}

// WithPool fans rebuild embedding work out to the given pool.
func WithPool(p *worker.Pool) Option {
	return func(s *Store) { s.pool = p }
}

// NewStore builds a knowledge store. embedder may be nil.
func NewStore(db *sql.DB, embedder Embedder, log *logger.Logger, opts ...Option) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Store{db: db, embedder: embedder, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores one entry, embedding title and content together when an
// embedder is available. Embedding failure is logged and the entry is kept
// without a vector; Add fails only on invalid input or storage errors.
func (s *Store) Add(ctx context.Context, entry models.KnowledgeEntry) (int64, error) {
	if entry.Content == "" {
		return 0, errors.New("knowledge entry content must not be empty")
	}

	var embeddingJSON sql.NullString
	if s.embedder != nil {
		vector, err := s.embedder.Embed(ctx, entry.Title+" "+entry.Content)
		if err != nil {
			s.log.Warn("embedding failed, storing entry without vector", "title", entry.Title, "error", err)
		} else if len(vector) > 0 {
			data, err := json.Marshal(vector)
			if err != nil {
				return 0, fmt.Errorf("encode embedding: %w", err)
			}
			embeddingJSON = sql.NullString{String: string(data), Valid: true}
		}
	}

	var metadataJSON sql.NullString
	if len(entry.Metadata) > 0 {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return 0, fmt.Errorf("encode metadata: %w", err)
		}
		metadataJSON = sql.NullString{String: string(data), Valid: true}
	}

	var sourceID sql.NullInt64
	if entry.SourceID > 0 {
		sourceID = sql.NullInt64{Int64: entry.SourceID, Valid: true}
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge_entries (title, content, source, source_id, embedding, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Title, entry.Content, entry.Source, sourceID, embeddingJSON, metadataJSON, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert knowledge entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("knowledge entry id: %w", err)
	}
	return id, nil
}

// Search returns up to limit entries relevant to query. The semantic path
// runs only when an embedder is configured and embedded entries exist;
// otherwise (or when query embedding fails) it substring-matches title and
// content, most recent first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]models.KnowledgeEntry, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if query == "" {
		return nil, nil
	}

	if s.embedder != nil {
		entries, err := s.semanticSearch(ctx, query, limit)
		if err == nil {
			return entries, nil
		}
		if !errors.Is(err, errNoVectors) {
			s.log.Warn("semantic search unavailable, falling back to substring match", "error", err)
		}
	}
	return s.substringSearch(ctx, query, limit)
}

var errNoVectors = errors.New("no embedded entries")

func (s *Store) semanticSearch(ctx context.Context, query string, limit int) ([]models.KnowledgeEntry, error) {
	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, source, source_id, embedding, metadata, created_at
		 FROM knowledge_entries WHERE embedding IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("load embedded entries: %w", err)
	}
	defer rows.Close()

	type scored struct {
		entry models.KnowledgeEntry
		score float64
	}
	var candidates []scored
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if len(entry.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, scored{entry: entry, score: cosineSimilarity(queryVector, entry.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errNoVectors
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	entries := make([]models.KnowledgeEntry, 0, len(candidates))
	for _, c := range candidates {
		entries = append(entries, c.entry)
	}
	return entries, nil
}

func (s *Store) substringSearch(ctx context.Context, query string, limit int) ([]models.KnowledgeEntry, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		terms = []string{strings.ToLower(strings.TrimSpace(query))}
	}

	conditions := make([]string, 0, len(terms))
	args := make([]any, 0, len(terms)*2)
	for _, term := range terms {
		conditions = append(conditions, "(title LIKE ? OR content LIKE ?)")
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, source, source_id, embedding, metadata, created_at
		 FROM knowledge_entries
		 WHERE `+strings.Join(conditions, " OR ")+`
		 ORDER BY created_at DESC, id DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("substring search: %w", err)
	}
	defer rows.Close()

	type scored struct {
		entry models.KnowledgeEntry
		hits  int
	}
	var candidates []scored
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		haystack := strings.ToLower(entry.Title + " " + entry.Content)
		hits := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				hits++
			}
		}
		candidates = append(candidates, scored{entry: entry, hits: hits})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].hits > candidates[j].hits })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	entries := make([]models.KnowledgeEntry, 0, len(candidates))
	for _, c := range candidates {
		entries = append(entries, c.entry)
	}
	return entries, nil
}

// stopWords are question filler that would match almost any entry.
var stopWords = map[string]bool{
	"what": true, "when": true, "where": true, "which": true, "whom": true,
	"does": true, "have": true, "this": true, "that": true, "with": true,
	"your": true, "yours": true, "about": true, "tell": true, "from": true,
	"could": true, "would": true, "should": true, "there": true, "their": true,
}

// searchTerms lowercases the query and keeps its content words, so a
// natural-language question matches entries on what it actually asks about.
// An empty result means the query had no usable words and the caller should
// match it verbatim.
func searchTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 4 || stopWords[f] {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count knowledge entries: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (models.KnowledgeEntry, error) {
	var (
		entry         models.KnowledgeEntry
		sourceID      sql.NullInt64
		embeddingJSON sql.NullString
		metadataJSON  sql.NullString
	)
	if err := rows.Scan(&entry.ID, &entry.Title, &entry.Content, &entry.Source,
		&sourceID, &embeddingJSON, &metadataJSON, &entry.CreatedAt); err != nil {
		return models.KnowledgeEntry{}, fmt.Errorf("scan knowledge entry: %w", err)
	}
	if sourceID.Valid {
		entry.SourceID = sourceID.Int64
	}
	if embeddingJSON.Valid && embeddingJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &entry.Embedding); err != nil {
			return models.KnowledgeEntry{}, fmt.Errorf("decode embedding: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &entry.Metadata); err != nil {
			return models.KnowledgeEntry{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return entry, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

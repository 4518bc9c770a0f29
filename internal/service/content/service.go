package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"portfoliogo/internal/models"
)

// Service owns project, post, and asset records.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL slug from a title.
func Slugify(title string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

// CreateProject inserts a project, deriving the slug from the title when
// not supplied.
func (s *Service) CreateProject(ctx context.Context, p models.Project) (*models.Project, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, errors.New("title is required")
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	techJSON, err := json.Marshal(p.Tech)
	if err != nil {
		return nil, fmt.Errorf("encode tech list: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (title, slug, description, body, tech, repo_url, live_url, published, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Slug, p.Description, p.Body, string(techJSON), p.RepoURL, p.LiveURL, p.Published, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("project id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return &p, nil
}

// UpdateProject rewrites a project record.
func (s *Service) UpdateProject(ctx context.Context, p models.Project) error {
	if p.ID <= 0 {
		return errors.New("invalid project id")
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	techJSON, err := json.Marshal(p.Tech)
	if err != nil {
		return fmt.Errorf("encode tech list: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET title = ?, slug = ?, description = ?, body = ?, tech = ?, repo_url = ?, live_url = ?, published = ?, updated_at = ?
		 WHERE id = ?`,
		p.Title, p.Slug, p.Description, p.Body, string(techJSON), p.RepoURL, p.LiveURL, p.Published, time.Now().UTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireAffected(res)
}

// DeleteProject removes a project.
func (s *Service) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireAffected(res)
}

// GetProjectBySlug returns one published project.
func (s *Service) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, slug, description, body, tech, repo_url, live_url, published, created_at, updated_at
		 FROM projects WHERE slug = ? AND published = 1`, slug)
	return scanProjectRow(row)
}

// ListProjects returns projects, optionally restricted to published ones,
// newest first.
func (s *Service) ListProjects(ctx context.Context, publishedOnly bool) ([]models.Project, error) {
	query := `SELECT id, title, slug, description, body, tech, repo_url, live_url, published, created_at, updated_at
		 FROM projects ORDER BY created_at DESC`
	if publishedOnly {
		query = `SELECT id, title, slug, description, body, tech, repo_url, live_url, published, created_at, updated_at
		 FROM projects WHERE published = 1 ORDER BY created_at DESC`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// ListPublishedProjects feeds the knowledge base rebuild.
func (s *Service) ListPublishedProjects(ctx context.Context) ([]models.Project, error) {
	return s.ListProjects(ctx, true)
}

// CreatePost inserts a blog post.
func (s *Service) CreatePost(ctx context.Context, p models.Post) (*models.Post, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, errors.New("title is required")
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (title, slug, excerpt, body, published, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Slug, p.Excerpt, p.Body, p.Published, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("post id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return &p, nil
}

// UpdatePost rewrites a post record.
func (s *Service) UpdatePost(ctx context.Context, p models.Post) error {
	if p.ID <= 0 {
		return errors.New("invalid post id")
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET title = ?, slug = ?, excerpt = ?, body = ?, published = ?, updated_at = ? WHERE id = ?`,
		p.Title, p.Slug, p.Excerpt, p.Body, p.Published, time.Now().UTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return requireAffected(res)
}

// DeletePost removes a post.
func (s *Service) DeletePost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return requireAffected(res)
}

// GetPostBySlug returns one published post.
func (s *Service) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, slug, excerpt, body, published, created_at, updated_at
		 FROM posts WHERE slug = ? AND published = 1`, slug)
	p := new(models.Post)
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Excerpt, &p.Body, &p.Published, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

// ListPosts returns posts, optionally restricted to published ones.
func (s *Service) ListPosts(ctx context.Context, publishedOnly bool) ([]models.Post, error) {
	query := `SELECT id, title, slug, excerpt, body, published, created_at, updated_at
		 FROM posts ORDER BY created_at DESC`
	if publishedOnly {
		query = `SELECT id, title, slug, excerpt, body, published, created_at, updated_at
		 FROM posts WHERE published = 1 ORDER BY created_at DESC`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Excerpt, &p.Body, &p.Published, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// ListPublishedPosts feeds the knowledge base rebuild.
func (s *Service) ListPublishedPosts(ctx context.Context) ([]models.Post, error) {
	return s.ListPosts(ctx, true)
}

// RecordAsset stores metadata for an uploaded file.
func (s *Service) RecordAsset(ctx context.Context, fileName, storedPath, mimeType string, size int64) (*models.Asset, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (file_name, stored_path, mime_type, size, created_at) VALUES (?, ?, ?, ?, ?)`,
		fileName, storedPath, mimeType, size, now,
	)
	if err != nil {
		return nil, fmt.Errorf("record asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("asset id: %w", err)
	}
	return &models.Asset{ID: id, FileName: fileName, StoredPath: storedPath, MimeType: mimeType, Size: size, CreatedAt: now}, nil
}

// GetAsset returns one asset record.
func (s *Service) GetAsset(ctx context.Context, id int64) (*models.Asset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_name, stored_path, mime_type, size, created_at FROM assets WHERE id = ?`, id)
	a := new(models.Asset)
	err := row.Scan(&a.ID, &a.FileName, &a.StoredPath, &a.MimeType, &a.Size, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

// DeleteAsset removes the record; the caller deletes the file.
func (s *Service) DeleteAsset(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return requireAffected(res)
}

// ListAssets returns all asset records, newest first.
func (s *Service) ListAssets(ctx context.Context) ([]models.Asset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, stored_path, mime_type, size, created_at FROM assets ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.ID, &a.FileName, &a.StoredPath, &a.MimeType, &a.Size, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type projectScanner interface {
	Scan(dest ...any) error
}

func scanProject(sc projectScanner) (*models.Project, error) {
	p := new(models.Project)
	var techJSON string
	if err := sc.Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &p.Body, &techJSON,
		&p.RepoURL, &p.LiveURL, &p.Published, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	if techJSON != "" {
		if err := json.Unmarshal([]byte(techJSON), &p.Tech); err != nil {
			return nil, fmt.Errorf("decode tech list: %w", err)
		}
	}
	return p, nil
}

func scanProjectRow(row *sql.Row) (*models.Project, error) {
	p := new(models.Project)
	var techJSON string
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &p.Body, &techJSON,
		&p.RepoURL, &p.LiveURL, &p.Published, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	if techJSON != "" {
		if err := json.Unmarshal([]byte(techJSON), &p.Tech); err != nil {
			return nil, fmt.Errorf("decode tech list: %w", err)
		}
	}
	return p, nil
}

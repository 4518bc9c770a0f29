package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"

	"portfoliogo/internal/models"
)

// ContentSource supplies the published content the knowledge base is built
// from.
type ContentSource interface {
	ListPublishedProjects(ctx context.Context) ([]models.Project, error)
	ListPublishedPosts(ctx context.Context) ([]models.Post, error)
}

// Rebuild replaces the whole knowledge base: delete everything, then re-add
// one entry per published project, one per published post, the fixed manual
// entries, and any docs-dir files. Individual embedding failures degrade to
// vectorless entries inside Add; readers during a rebuild may observe a
// transiently thin corpus, which is accepted.
func (s *Store) Rebuild(ctx context.Context, source ContentSource) error {
	projects, err := source.ListPublishedProjects(ctx)
	if err != nil {
		return fmt.Errorf("list published projects: %w", err)
	}
	posts, err := source.ListPublishedPosts(ctx)
	if err != nil {
		return fmt.Errorf("list published posts: %w", err)
	}

	entries := make([]models.KnowledgeEntry, 0, len(projects)+len(posts)+4)
	for _, p := range projects {
		entries = append(entries, projectEntry(p))
	}
	for _, p := range posts {
		entries = append(entries, postEntry(p))
	}
	entries = append(entries, manualEntries()...)
	if s.docsDir != "" {
		docEntries, err := s.loadDocEntries(ctx)
		if err != nil {
			s.log.Warn("knowledge docs ingestion skipped", "dir", s.docsDir, "error", err)
		} else {
			entries = append(entries, docEntries...)
		}
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_entries`); err != nil {
		return fmt.Errorf("clear knowledge entries: %w", err)
	}

	if s.pool == nil {
		for _, entry := range entries {
			if _, err := s.Add(ctx, entry); err != nil {
				s.log.Error("rebuild: add entry failed", "title", entry.Title, "error", err)
			}
		}
	} else {
		var wg sync.WaitGroup
		for _, entry := range entries {
			entry := entry
			wg.Add(1)
			if err := s.pool.Submit(func() {
				defer wg.Done()
				if _, err := s.Add(ctx, entry); err != nil {
					s.log.Error("rebuild: add entry failed", "title", entry.Title, "error", err)
				}
			}); err != nil {
				wg.Done()
				return fmt.Errorf("submit rebuild job: %w", err)
			}
		}
		wg.Wait()
	}

	s.log.Info("knowledge base rebuilt",
		"projects", len(projects), "posts", len(posts), "total", len(entries))
	return nil
}

func projectEntry(p models.Project) models.KnowledgeEntry {
	var sb strings.Builder
	sb.WriteString(p.Description)
	if len(p.Tech) > 0 {
		sb.WriteString("\n\nTechnologies: ")
		sb.WriteString(strings.Join(p.Tech, ", "))
	}
	if p.RepoURL != "" {
		sb.WriteString("\nRepository: " + p.RepoURL)
	}
	if p.LiveURL != "" {
		sb.WriteString("\nLive: " + p.LiveURL)
	}
	return models.KnowledgeEntry{
		Title:    p.Title,
		Content:  sb.String(),
		Source:   models.SourceProject,
		SourceID: p.ID,
		Metadata: map[string]string{"url": "/projects/" + p.Slug},
	}
}

func postEntry(p models.Post) models.KnowledgeEntry {
	content := p.Body
	if p.Excerpt != "" {
		content = p.Excerpt + "\n\n" + p.Body
	}
	return models.KnowledgeEntry{
		Title:    p.Title,
		Content:  content,
		Source:   models.SourceBlog,
		SourceID: p.ID,
		Metadata: map[string]string{"url": "/blog/" + p.Slug},
	}
}

// manualEntries are the fixed facts the assistant should know even with no
// published content.
func manualEntries() []models.KnowledgeEntry {
	return []models.KnowledgeEntry{
		{
			Title:   "Technical Skills Overview",
			Content: "Technologies used day to day: Go backend services, SQL data modeling (SQLite and MySQL), REST API design with Gin, Redis caching, and LLM integrations for retrieval-augmented features. Comfortable across the stack from schema design to deployment.",
			Source:  models.SourceManual,
		},
		{
			Title:   "Work Philosophy",
			Content: "Prefer small, well-tested components over frameworks of abstractions. Degrade gracefully: a feature that fails should fall back to something useful rather than an error page. Ship the simple version first, measure, then improve.",
			Source:  models.SourceManual,
		},
		{
			Title:   "About This Site",
			Content: "This portfolio site features a projects showcase, a technical blog, and this chat widget. The widget offers a guided tour through a scripted decision tree and can switch to free-form AI answers grounded in the published projects and posts.",
			Source:  models.SourceManual,
		},
	}
}

// loadDocEntries ingests .md/.txt files from the configured directory as
// extra manual entries, parsed through the eino file loader.
func (s *Store) loadDocEntries(ctx context.Context) ([]models.KnowledgeEntry, error) {
	parserExt, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init doc parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init doc loader: %w", err)
	}

	dirEntries, err := os.ReadDir(s.docsDir)
	if err != nil {
		return nil, fmt.Errorf("read docs dir: %w", err)
	}

	var entries []models.KnowledgeEntry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(de.Name()))
		if ext != ".md" && ext != ".txt" {
			continue
		}
		path := filepath.Join(s.docsDir, de.Name())
		docs, err := loader.Load(ctx, document.Source{URI: path})
		if err != nil {
			s.log.Warn("load knowledge doc failed", "path", path, "error", err)
			continue
		}
		for _, doc := range docs {
			if strings.TrimSpace(doc.Content) == "" {
				continue
			}
			entries = append(entries, models.KnowledgeEntry{
				Title:   strings.TrimSuffix(de.Name(), ext),
				Content: doc.Content,
				Source:  models.SourceManual,
			})
		}
	}
	return entries, nil
}

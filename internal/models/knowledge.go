package models

import "time"

// KnowledgeSource identifies where a knowledge entry originated.
type KnowledgeSource string

const (
	SourceProject KnowledgeSource = "project"
	SourceBlog    KnowledgeSource = "blog"
	SourceManual  KnowledgeSource = "manual"
)

// KnowledgeEntry is one retrievable snippet of the assistant's corpus.
// Embedding is present only when vector generation succeeded at add time.
type KnowledgeEntry struct {
	ID        int64             `json:"id"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Source    KnowledgeSource   `json:"source"`
	SourceID  int64             `json:"source_id,omitempty"`
	Embedding []float64         `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

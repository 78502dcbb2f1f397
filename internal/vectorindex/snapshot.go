package vectorindex

import (
	"encoding/json"
	"fmt"
	"os"

	"finqa/internal/domain"
)

type snapshotChunk struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   int    `json:"page"`
}

// LoadSnapshot reads a pre-chunked corpus file: a JSON array of
// {id, text, source, page} objects.
func LoadSnapshot(path string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var raw []snapshotChunk
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	chunks := make([]domain.Chunk, 0, len(raw))
	for i, c := range raw {
		if c.ID == "" {
			return nil, fmt.Errorf("snapshot %s: chunk %d has no id", path, i)
		}
		chunks = append(chunks, domain.Chunk{ID: c.ID, Text: c.Text, SourceDoc: c.Source, Page: c.Page})
	}
	return chunks, nil
}

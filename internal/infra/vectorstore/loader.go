package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document is one knowledge entry tagged with the file it came from.
type Document struct {
	Text   string
	Source string
}

type knowledgeEntry struct {
	Conversation string `json:"conversation"`
}

// LoadDocuments reads every *.json file in dir. Each file holds an array of
// objects whose "conversation" value becomes a document.
func LoadDocuments(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read knowledge folder %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsKnowledgeFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var docs []Document
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var items []knowledgeEntry
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		for _, item := range items {
			if strings.TrimSpace(item.Conversation) == "" {
				continue
			}
			docs = append(docs, Document{Text: item.Conversation, Source: name})
		}
	}
	return docs, nil
}

func IsKnowledgeFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}

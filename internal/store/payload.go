package store

import (
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/openclaw/vaultbridge/internal/models"
)

// Chunk payload fields.
const (
	fieldChunkID      = "chunk_id"
	fieldNotePath     = "note_path"
	fieldNoteTitle    = "note_title"
	fieldContent      = "content"
	fieldChunkIndex   = "chunk_index"
	fieldHeadingPath  = "heading_path"
	fieldTags         = "tags"
	fieldLastModified = "last_modified"
)

// Link payload fields.
const (
	fieldSourcePath = "source_path"
	fieldLinkText   = "link_text"
	fieldTargetPath = "resolved_target_path"
	fieldLinkKind   = "kind"
)

func chunkPayload(c models.Chunk) map[string]*qdrant.Value {
	tags := make([]*qdrant.Value, len(c.Tags))
	for i, t := range c.Tags {
		tags[i] = qdrant.NewValueString(t)
	}
	return map[string]*qdrant.Value{
		fieldChunkID:      qdrant.NewValueString(c.ID),
		fieldNotePath:     qdrant.NewValueString(c.NotePath),
		fieldNoteTitle:    qdrant.NewValueString(c.NoteTitle),
		fieldContent:      qdrant.NewValueString(c.Content),
		fieldChunkIndex:   qdrant.NewValueInt(int64(c.Index)),
		fieldHeadingPath:  qdrant.NewValueString(c.HeadingPath),
		fieldTags:         qdrant.NewValueList(&qdrant.ListValue{Values: tags}),
		fieldLastModified: qdrant.NewValueString(c.LastModified.UTC().Format(time.RFC3339)),
	}
}

func resultFromPayload(payload map[string]*qdrant.Value, score float32) models.SearchResultItem {
	return models.SearchResultItem{
		ChunkID:     payload[fieldChunkID].GetStringValue(),
		NotePath:    payload[fieldNotePath].GetStringValue(),
		NoteTitle:   payload[fieldNoteTitle].GetStringValue(),
		Content:     payload[fieldContent].GetStringValue(),
		Score:       score,
		HeadingPath: payload[fieldHeadingPath].GetStringValue(),
	}
}

func linkPayload(l models.WikiLink) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		fieldSourcePath: qdrant.NewValueString(l.SourcePath),
		fieldLinkText:   qdrant.NewValueString(l.LinkText),
		fieldTargetPath: qdrant.NewValueString(l.ResolvedTargetPath),
		fieldLinkKind:   qdrant.NewValueString(l.Kind),
	}
}

func linkFromPayload(payload map[string]*qdrant.Value) models.WikiLink {
	return models.WikiLink{
		SourcePath:         payload[fieldSourcePath].GetStringValue(),
		LinkText:           payload[fieldLinkText].GetStringValue(),
		ResolvedTargetPath: payload[fieldTargetPath].GetStringValue(),
		Kind:               payload[fieldLinkKind].GetStringValue(),
	}
}

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/vaultbridge/internal/models"
)

func TestChunkPayloadRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	c := models.Chunk{
		ID:           "projects/roadmap.md#chunk2",
		NotePath:     "projects/roadmap.md",
		Content:      "## Milestones\nShip the beta.",
		Index:        2,
		HeadingPath:  "Roadmap > Milestones",
		NoteTitle:    "Roadmap",
		Tags:         []string{"planning", "beta"},
		LastModified: ts,
	}

	payload := chunkPayload(c)

	assert.Equal(t, "projects/roadmap.md#chunk2", payload[fieldChunkID].GetStringValue())
	assert.Equal(t, int64(2), payload[fieldChunkIndex].GetIntegerValue())
	assert.Equal(t, "2026-03-14T09:30:00Z", payload[fieldLastModified].GetStringValue())

	tags := payload[fieldTags].GetListValue().GetValues()
	require.Len(t, tags, 2)
	assert.Equal(t, "planning", tags[0].GetStringValue())

	got := resultFromPayload(payload, 0.42)
	assert.Equal(t, c.ID, got.ChunkID)
	assert.Equal(t, c.NotePath, got.NotePath)
	assert.Equal(t, c.NoteTitle, got.NoteTitle)
	assert.Equal(t, c.Content, got.Content)
	assert.Equal(t, c.HeadingPath, got.HeadingPath)
	assert.Equal(t, float32(0.42), got.Score)
}

func TestResultFromPayload_MissingFields(t *testing.T) {
	got := resultFromPayload(nil, 0)
	assert.Empty(t, got.ChunkID)
	assert.Empty(t, got.NotePath)
}

func TestLinkPayloadRoundTrip(t *testing.T) {
	l := models.WikiLink{
		SourcePath:         "daily/2026-03-14.md",
		LinkText:           "roadmap",
		ResolvedTargetPath: "projects/roadmap.md",
		Kind:               models.LinkKindWikilink,
	}

	assert.Equal(t, l, linkFromPayload(linkPayload(l)))
}

func TestLinkPayload_UnresolvedTarget(t *testing.T) {
	l := models.WikiLink{
		SourcePath: "ideas.md",
		LinkText:   "someday",
		Kind:       models.LinkKindWikilink,
	}

	got := linkFromPayload(linkPayload(l))
	assert.Empty(t, got.ResolvedTargetPath)
	assert.Equal(t, l, got)
}

func TestPointIDDeterministic(t *testing.T) {
	a := pointID("notes/a.md#chunk0")
	b := pointID("notes/a.md#chunk0")
	c := pointID("notes/a.md#chunk1")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	// RFC 4122 name-based (v5) UUID.
	assert.Len(t, a, 36)
	assert.Equal(t, byte('5'), a[14])
}

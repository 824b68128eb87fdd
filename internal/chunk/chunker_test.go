package chunk

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunk_HeadingPaths(t *testing.T) {
	content := "intro line\n# Top\ntop body\n## Sub\nsub body\n# Other\nother body\n"
	chunks := New(512, 128).Chunk("notes/a.md", content)

	if len(chunks) != 4 {
		t.Fatalf("len(chunks) = %d, want 4", len(chunks))
	}

	wantPaths := []string{"", "Top", "Top > Sub", "Other"}
	for i, want := range wantPaths {
		if chunks[i].HeadingPath != want {
			t.Errorf("chunk %d heading path = %q, want %q", i, chunks[i].HeadingPath, want)
		}
	}
	if chunks[2].Content != "sub body" {
		t.Errorf("chunk 2 content = %q", chunks[2].Content)
	}
}

func TestChunk_PopToShallowerHeading(t *testing.T) {
	content := "# A\n## B\n### C\ndeep\n## D\nafter pop\n"
	chunks := New(512, 128).Chunk("a.md", content)

	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if chunks[0].HeadingPath != "A > B > C" {
		t.Errorf("chunk 0 path = %q", chunks[0].HeadingPath)
	}
	// "## D" replaces B and clears C.
	if chunks[1].HeadingPath != "A > D" {
		t.Errorf("chunk 1 path = %q", chunks[1].HeadingPath)
	}
}

func TestChunk_EmptySectionSkipped(t *testing.T) {
	content := "# Empty\n# Full\nbody\n"
	chunks := New(512, 128).Chunk("a.md", content)

	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if chunks[0].HeadingPath != "Full" {
		t.Errorf("path = %q, want Full", chunks[0].HeadingPath)
	}
}

func TestChunk_NoHeadings(t *testing.T) {
	content := strings.Repeat("word ", 300) // ~1500 chars
	chunks := New(512, 128).Chunk("a.md", content)

	if len(chunks) < 3 {
		t.Fatalf("len(chunks) = %d, want >= 3", len(chunks))
	}
	for i, c := range chunks {
		if c.HeadingPath != "" {
			t.Errorf("chunk %d heading path = %q, want empty", i, c.HeadingPath)
		}
		if len(c.Content) > 512 {
			t.Errorf("chunk %d len = %d, want <= 512", i, len(c.Content))
		}
	}
}

func TestChunk_OverlapCarriesTail(t *testing.T) {
	// One long headingless section; consecutive chunks must share text.
	content := strings.Repeat("abcdefghij", 120) // 1200 chars, no spaces trimmed away
	chunks := New(512, 128).Chunk("a.md", content)

	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want >= 2", len(chunks))
	}
	tail := chunks[0].Content[len(chunks[0].Content)-128:]
	if !strings.HasPrefix(chunks[1].Content, tail) {
		t.Error("second chunk does not start with first chunk's 128-char tail")
	}
}

func TestChunk_MultibyteRuneBoundaries(t *testing.T) {
	// 800 runes of 3-byte CJK text in one headingless section. Byte
	// slicing would cut runes in half at every boundary.
	content := strings.Repeat("日本語のテキスト", 100)
	chunks := New(512, 128).Chunk("cjk.md", content)

	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want >= 2", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Content) {
			t.Fatalf("chunk %d content is not valid UTF-8", i)
		}
		if n := utf8.RuneCountInString(c.Content); n > 512 {
			t.Errorf("chunk %d rune count = %d, want <= 512", i, n)
		}
	}

	// The overlap is counted in runes too.
	first := []rune(chunks[0].Content)
	tail := string(first[len(first)-128:])
	if !strings.HasPrefix(chunks[1].Content, tail) {
		t.Error("second chunk does not start with first chunk's 128-rune tail")
	}
}

func TestChunk_DeterministicIDs(t *testing.T) {
	content := "# A\n" + strings.Repeat("x", 2000) + "\n## B\nshort\n"
	a := New(512, 128).Chunk("notes/n.md", content)
	b := New(512, 128).Chunk("notes/n.md", content)

	if !reflect.DeepEqual(a, b) {
		t.Fatal("re-chunking identical content produced different chunks")
	}
	for i, c := range a {
		want := fmt.Sprintf("notes/n.md#chunk%d", i)
		if c.ID != want {
			t.Errorf("chunk %d id = %q, want %q", i, c.ID, want)
		}
		if c.Index != i {
			t.Errorf("chunk %d index = %d", i, c.Index)
		}
	}
}

func TestChunk_EmptyDocument(t *testing.T) {
	if got := New(512, 128).Chunk("a.md", "   \n\n"); len(got) != 0 {
		t.Errorf("expected no chunks, got %d", len(got))
	}
}

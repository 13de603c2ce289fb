package chunker

import (
	"fmt"
	"strings"
	"testing"
)

func TestLineChunker_Basic(t *testing.T) {
	chunker := NewLineChunker(20, 5, nil)

	var b strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "line %d talks about retrieval and passages\n", i)
	}

	passages := chunker.Split("notes/rag.md", b.String())
	if len(passages) < 2 {
		t.Fatalf("expected several passages, got %d", len(passages))
	}

	seen := make(map[string]bool)
	for _, p := range passages {
		if p.ID == "" {
			t.Error("passage has empty ID")
		}
		if seen[p.ID] {
			t.Errorf("duplicate passage id %s", p.ID)
		}
		seen[p.ID] = true

		if p.Metadata[MetaSource] != "notes/rag.md" {
			t.Errorf("expected source metadata, got %v", p.Metadata[MetaSource])
		}
		if p.Metadata[MetaPageType] != PageTypeText {
			t.Errorf("expected page_type text, got %v", p.Metadata[MetaPageType])
		}
		start := p.Metadata[MetaStartLine].(int)
		end := p.Metadata[MetaEndLine].(int)
		if start < 1 || end < start {
			t.Errorf("invalid span %d-%d", start, end)
		}
	}

	last := passages[len(passages)-1]
	if !strings.Contains(last.Content, "line 29") {
		t.Errorf("last passage should reach the end, got %q", last.Content)
	}
}

func TestLineChunker_Overlap(t *testing.T) {
	chunker := NewLineChunker(10, 4, nil)
	content := "alpha beta gamma delta\nepsilon zeta eta theta\niota kappa lambda mu\nnu xi omicron pi"

	passages := chunker.Split("greek.txt", content)
	if len(passages) < 2 {
		t.Fatalf("expected at least 2 passages, got %d", len(passages))
	}

	firstEnd := passages[0].Metadata[MetaEndLine].(int)
	secondStart := passages[1].Metadata[MetaStartLine].(int)
	if secondStart > firstEnd {
		t.Errorf("expected overlapping spans, got end %d and start %d", firstEnd, secondStart)
	}
}

func TestLineChunker_StableIDs(t *testing.T) {
	chunker := NewLineChunker(50, 0, nil)
	content := "one short file"

	a := chunker.Split("a.txt", content)
	b := chunker.Split("a.txt", content)
	c := chunker.Split("b.txt", content)

	if len(a) != 1 || a[0].ID != b[0].ID {
		t.Errorf("expected stable ids, got %v and %v", a, b)
	}
	if a[0].ID == c[0].ID {
		t.Error("different sources must produce different ids")
	}
}

func TestLineChunker_SkipsBlankText(t *testing.T) {
	chunker := NewLineChunker(50, 0, nil)

	if got := chunker.Split("empty.md", "\n\n   \n"); len(got) != 0 {
		t.Errorf("expected no passages, got %d", len(got))
	}
}

func TestLineChunker_LongLine(t *testing.T) {
	chunker := NewLineChunker(3, 0, nil)

	passages := chunker.Split("long.txt", "one two three four five six seven\nshort")
	if len(passages) != 2 {
		t.Fatalf("expected oversized line to form its own passage, got %d", len(passages))
	}
}

package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"ragchain/internal/adapter/analyzer"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

// Metadata keys set on every passage.
const (
	MetaSource    = "source"
	MetaPageType  = "page_type"
	MetaStartLine = "start_line"
	MetaEndLine   = "end_line"

	PageTypeText = "text"
)

// LineChunker groups whole lines into passages of at most maxTokens, with
// about overlap tokens repeated between neighbours.
type LineChunker struct {
	maxTokens int
	overlap   int
	tokenizer *analyzer.Tokenizer
}

var _ port.Splitter = (*LineChunker)(nil)

func NewLineChunker(maxTokens, overlap int, tokenizer *analyzer.Tokenizer) *LineChunker {
	if tokenizer == nil {
		tokenizer = analyzer.NewTokenizer()
	}
	if overlap >= maxTokens {
		overlap = maxTokens / 4
	}
	return &LineChunker{
		maxTokens: maxTokens,
		overlap:   overlap,
		tokenizer: tokenizer,
	}
}

// Split returns the passages of content. Passage ids depend only on source
// and line span, so re-ingesting an unchanged file overwrites its passages.
func (c *LineChunker) Split(source, content string) []domain.Passage {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	var passages []domain.Passage
	startLine := 0

	for startLine < len(lines) {
		endLine := startLine
		currentTokens := 0

		for endLine < len(lines) {
			lineTokens := c.tokenizer.CountTokens(lines[endLine])
			if currentTokens > 0 && currentTokens+lineTokens > c.maxTokens {
				break
			}
			currentTokens += lineTokens
			endLine++
		}
		if endLine == startLine {
			endLine++
		}

		text := strings.TrimSpace(strings.Join(lines[startLine:endLine], "\n"))
		if text != "" {
			passages = append(passages, domain.Passage{
				ID:      passageID(source, startLine, endLine),
				Content: text,
				Metadata: map[string]any{
					MetaSource:    source,
					MetaPageType:  PageTypeText,
					MetaStartLine: startLine + 1,
					MetaEndLine:   endLine,
				},
			})
		}

		if endLine >= len(lines) {
			break
		}

		newStart := endLine - c.overlapLines(lines, startLine, endLine)
		if newStart <= startLine {
			newStart = startLine + 1
		}
		startLine = newStart
	}

	return passages
}

func (c *LineChunker) overlapLines(lines []string, start, end int) int {
	if c.overlap == 0 {
		return 0
	}

	n := 0
	tokens := 0
	for i := end - 1; i >= start && tokens < c.overlap; i-- {
		tokens += c.tokenizer.CountTokens(lines[i])
		n++
	}
	return n
}

func passageID(source string, startLine, endLine int) string {
	data := fmt.Sprintf("%s:%d-%d", source, startLine, endLine)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}

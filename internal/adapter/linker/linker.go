// Package linker stores passage documents by id, separately from the search
// index. Every implementation returns positional results for batch lookups
// and reports misses as diagnostics instead of errors.
package linker

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"ragchain/internal/domain"
)

func checkPut(ids []string, docs []domain.Document) error {
	if len(ids) == 0 {
		return domain.InvalidArgumentf("ids must be a non-empty list")
	}
	if len(ids) != len(docs) {
		return domain.InvalidArgumentf("got %d ids but %d documents", len(ids), len(docs))
	}
	for i, id := range ids {
		if id == "" {
			return domain.InvalidArgumentf("id %d is empty", i)
		}
	}
	return nil
}

func checkGet(ids []string) error {
	if len(ids) == 0 {
		return domain.InvalidArgumentf("ids must be a non-empty list")
	}
	return nil
}

func encodeDocuments(ids []string, docs []domain.Document) ([][]byte, error) {
	out := make([][]byte, len(docs))
	for i, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, domain.InvalidArgumentf("document %q is not JSON-serializable: %v", ids[i], err)
		}
		out[i] = data
	}
	return out, nil
}

// decodeDocument returns nil for a stored JSON null.
func decodeDocument(data []byte) (domain.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

// collector assembles a LinkResult and logs each miss.
type collector struct {
	logger *zap.Logger
	result domain.LinkResult
}

func newCollector(logger *zap.Logger, n int) *collector {
	return &collector{
		logger: logger,
		result: domain.LinkResult{Documents: make([]domain.Document, n)},
	}
}

func (c *collector) found(i int, doc domain.Document) {
	c.result.Documents[i] = doc
}

func (c *collector) missingID(i int, id string) {
	c.logger.Warn("id not found in linker", zap.String("id", id), zap.Int("index", i))
	c.result.Diagnostics = append(c.result.Diagnostics, domain.Diagnostic{ID: id, Index: i, Kind: domain.DiagnosticMissingID})
}

func (c *collector) missingData(i int, id string, err error) {
	fields := []zap.Field{zap.String("id", id), zap.Int("index", i)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	c.logger.Warn("data not found in linker", fields...)
	c.result.Diagnostics = append(c.result.Diagnostics, domain.Diagnostic{ID: id, Index: i, Kind: domain.DiagnosticMissingData})
}

// raw records a stored value; a null or undecodable value is a data miss.
func (c *collector) raw(i int, id string, data []byte) {
	doc, err := decodeDocument(data)
	if err != nil || doc == nil {
		c.missingData(i, id, err)
		return
	}
	c.found(i, doc)
}

package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

// bulkAction is the action line preceding each document.
type bulkAction struct {
	Index bulkTarget `json:"index"`
}

type bulkTarget struct {
	Index string `json:"_index"`
}

// BuildBulkPayload serialises docs as newline-delimited action/document pairs
// targeting index. The payload ends with a newline.
func BuildBulkPayload(index string, docs []domain.ImageDocument) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	action := bulkAction{Index: bulkTarget{Index: index}}
	for i := range docs {
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("encode action %d: %w", i, err)
		}
		if err := enc.Encode(docs[i]); err != nil {
			return nil, fmt.Errorf("encode document %s: %w", docs[i].ImageID, err)
		}
	}
	return buf.Bytes(), nil
}

// ReadBulkPayload parses the action/document pairs written by BuildBulkPayload.
// The target index named in each action is ignored.
func ReadBulkPayload(r io.Reader) ([]domain.ImageDocument, error) {
	dec := json.NewDecoder(r)

	var docs []domain.ImageDocument
	for pair := 1; ; pair++ {
		var action map[string]json.RawMessage
		err := dec.Decode(&action)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode action %d: %w", pair, err)
		}
		if _, ok := action["index"]; !ok {
			return nil, fmt.Errorf("action %d: %w: expected an index action", pair, domain.ErrInvalidInput)
		}

		var doc domain.ImageDocument
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("decode document %d: %w", pair, err)
		}
		docs = append(docs, doc)
	}
}

// ChunkDocuments splits docs into consecutive chunks of at most size documents.
func ChunkDocuments(docs []domain.ImageDocument, size int) [][]domain.ImageDocument {
	if size <= 0 {
		size = len(docs)
	}
	var chunks [][]domain.ImageDocument
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		chunks = append(chunks, docs[start:end])
	}
	return chunks
}

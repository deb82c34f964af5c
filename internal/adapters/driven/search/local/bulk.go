package local

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

// Action is one index operation of a bulk payload.
type Action struct {
	Index string
	ID    string
	Doc   domain.ImageDocument
}

type actionLine struct {
	Index *struct {
		Index string `json:"_index"`
		ID    string `json:"_id"`
	} `json:"index"`
}

// ParseBulk decodes a newline-delimited action/document payload.
// Actions without an _id get a generated one.
func ParseBulk(payload []byte) ([]Action, error) {
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var (
		actions []Action
		pending *Action
		line    int
	)
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		if pending == nil {
			var a actionLine
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", domain.ErrInvalidInput, line, err)
			}
			if a.Index == nil || a.Index.Index == "" {
				return nil, fmt.Errorf("%w: line %d: expected index action", domain.ErrInvalidInput, line)
			}
			id := a.Index.ID
			if id == "" {
				id = uuid.NewString()
			}
			pending = &Action{Index: a.Index.Index, ID: id}
			continue
		}

		if err := json.Unmarshal(raw, &pending.Doc); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrInvalidInput, line, err)
		}
		actions = append(actions, *pending)
		pending = nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read bulk payload: %w", err)
	}
	if pending != nil {
		return nil, fmt.Errorf("%w: action without document at line %d", domain.ErrInvalidInput, line)
	}
	return actions, nil
}

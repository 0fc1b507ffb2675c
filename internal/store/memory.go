// CLAUDE:SUMMARY Per-watch AgentMemory get/put and the singleton GlobalMemory row.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// GetAgentMemory returns a watch's agent memory, or an empty one if none
// has been written yet.
func (s *Store) GetAgentMemory(ctx context.Context, watchID string) (*AgentMemory, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT watch_id, memory, updated_at FROM agent_memory WHERE watch_id = ?`, watchID)
	m, err := scanAgentMemory(row)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return &AgentMemory{WatchID: watchID, Memory: map[string]interface{}{}}, nil
	}
	return m, nil
}

// PutAgentMemory upserts a watch's agent memory outside of any caller-managed
// transaction. Prefer Tx.PutAgentMemory when it must be atomic with the
// change that produced the update.
func (s *Store) PutAgentMemory(ctx context.Context, m *AgentMemory) error {
	return putAgentMemory(ctx, s.DB, m)
}

func putAgentMemory(ctx context.Context, ex execer, m *AgentMemory) error {
	if m.Memory == nil {
		m.Memory = map[string]interface{}{}
	}
	if m.IsOverLimit() {
		m.TruncateToLimit()
	}
	encoded, err := json.Marshal(m.Memory)
	if err != nil {
		return fmt.Errorf("marshal agent memory: %w", err)
	}
	m.UpdatedAt = time.Now().Unix()
	_, err = ex.ExecContext(ctx,
		`INSERT INTO agent_memory (watch_id, memory, updated_at) VALUES (?,?,?)
		ON CONFLICT(watch_id) DO UPDATE SET memory = excluded.memory, updated_at = excluded.updated_at`,
		m.WatchID, string(encoded), m.UpdatedAt)
	return err
}

func scanAgentMemory(row *sql.Row) (*AgentMemory, error) {
	var m AgentMemory
	var raw string
	err := row.Scan(&m.WatchID, &raw, &m.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan agent memory: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &m.Memory); err != nil {
		m.Memory = map[string]interface{}{}
	}
	return &m, nil
}

// GlobalMemory is opaque to the core; only get/put are exposed. Orthogonal
// features (reminders, cross-watch decay) layered on the store read and
// write this same row.
type GlobalMemoryDoc struct {
	Memory    map[string]interface{} `json:"memory"`
	UpdatedAt int64                  `json:"updated_at"`
}

// GetGlobalMemory returns the singleton global memory row, or an empty
// document if it has never been written.
func (s *Store) GetGlobalMemory(ctx context.Context) (*GlobalMemoryDoc, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT memory, updated_at FROM global_memory WHERE id = 1`)
	var raw string
	var doc GlobalMemoryDoc
	err := row.Scan(&raw, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return &GlobalMemoryDoc{Memory: map[string]interface{}{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan global memory: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &doc.Memory); err != nil {
		doc.Memory = map[string]interface{}{}
	}
	return &doc, nil
}

// PutGlobalMemory upserts the singleton global memory row.
func (s *Store) PutGlobalMemory(ctx context.Context, doc *GlobalMemoryDoc) error {
	if doc.Memory == nil {
		doc.Memory = map[string]interface{}{}
	}
	encoded, err := json.Marshal(doc.Memory)
	if err != nil {
		return fmt.Errorf("marshal global memory: %w", err)
	}
	doc.UpdatedAt = time.Now().Unix()
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO global_memory (id, memory, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET memory = excluded.memory, updated_at = excluded.updated_at`,
		string(encoded), doc.UpdatedAt)
	return err
}

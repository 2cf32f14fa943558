package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types appended by the engine.
const (
	OrgCreated       = "org.created"
	OrgConfigUpdated = "org.config_updated"
	StoneCreated     = "stone.created"
	StoneUpdated     = "stone.updated"
	StoneSold        = "stone.sold"
	StoneUnsold      = "stone.unsold"
	StoneDeleted     = "stone.deleted"
	ExportCompleted  = "export.completed"
	ExportEmpty      = "export.empty"
	APIKeyCreated    = "apikey.created"
	APIKeyRevoked    = "apikey.revoked"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes one event row inside tx.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, orgID, entityKind, entityID, actorID string, payload EventPayload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339Nano)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,org_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(orgID), entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

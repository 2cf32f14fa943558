package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/config"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/logging"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

type hookKey struct {
	org string
	idx int
}

// WebhookDispatcher forwards each organization's activity log to the
// webhooks listed in its config. Cursors live in memory and start at the
// latest event, so only events written after startup are delivered.
type WebhookDispatcher struct {
	engine  engine.Engine
	log     logrus.FieldLogger
	client  *http.Client
	mu      sync.Mutex
	cursors map[hookKey]int64
}

func NewWebhookDispatcher(e engine.Engine, logger logrus.FieldLogger) *WebhookDispatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &WebhookDispatcher{
		engine:  e,
		log:     logger.WithField("module", "webhooks"),
		client:  &http.Client{Timeout: defaultWebhookTimeout},
		cursors: make(map[hookKey]int64),
	}
}

// StartWebhooks runs a dispatcher until ctx is done.
func StartWebhooks(ctx context.Context, e engine.Engine, logger logrus.FieldLogger) *WebhookDispatcher {
	d := NewWebhookDispatcher(e, logger)
	go d.run(ctx)
	return d
}

func (d *WebhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce delivers pending events for every organization.
func (d *WebhookDispatcher) DispatchOnce(ctx context.Context) {
	orgs, err := d.engine.Repo.ListOrganizations(ctx)
	if err != nil {
		logging.LogError(d.log, "webhooks", "DispatchOnce", "", nil, err)
		return
	}
	for _, org := range orgs {
		if org.Status != "active" {
			continue
		}
		cfg, err := d.engine.OrgConfig(ctx, org.ID)
		if err != nil {
			logging.LogError(d.log, "webhooks", "DispatchOnce", org.ID, nil, err)
			continue
		}
		for i, hook := range cfg.Webhooks {
			if hook.Enabled != nil && !*hook.Enabled {
				continue
			}
			if strings.TrimSpace(hook.URL) == "" {
				continue
			}
			d.dispatchWebhook(ctx, hookKey{org: org.ID, idx: i}, hook)
		}
	}
}

func (d *WebhookDispatcher) dispatchWebhook(ctx context.Context, key hookKey, hook config.WebhookConfig) {
	cursor := d.cursorFor(ctx, key)
	events, err := d.engine.Repo.EventsAfter(ctx, defaultWebhookBatch, cursor, key.org)
	if err != nil {
		logging.LogError(d.log, "webhooks", "dispatchWebhook", key.org, nil, err)
		return
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range events {
		if !filter.match(evt.Type) {
			d.setCursor(key, evt.ID)
			continue
		}
		if err := d.postEvent(ctx, key.org, hook, evt); err != nil {
			d.log.WithFields(logrus.Fields{"org": key.org, "url": hook.URL, "event": evt.ID}).Warn(err.Error())
			return
		}
		d.setCursor(key, evt.ID)
	}
}

func (d *WebhookDispatcher) cursorFor(ctx context.Context, key hookKey) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[key]; ok {
		return cur
	}
	cur, err := d.engine.Repo.LatestEventID(ctx, key.org)
	if err != nil {
		logging.LogError(d.log, "webhooks", "cursorFor", key.org, nil, err)
		cur = 0
	}
	d.cursors[key] = cur
	return cur
}

func (d *WebhookDispatcher) setCursor(key hookKey, value int64) {
	d.mu.Lock()
	d.cursors[key] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	OrgID      string          `json:"org_id"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

func (d *WebhookDispatcher) postEvent(ctx context.Context, orgID string, hook config.WebhookConfig, evt domain.Event) error {
	payload := json.RawMessage("{}")
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	data, err := json.Marshal(webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		OrgID:      orgID,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gemstones-Event", evt.Type)
	req.Header.Set("X-Gemstones-Delivery", fmt.Sprintf("%d", evt.ID))
	req.Header.Set("X-Gemstones-Org", orgID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Gemstones-Secret", hook.Secret)
	}
	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		if key := strings.TrimSpace(evt); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}

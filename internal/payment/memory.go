package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
)

// MemoryGateway is an in-process gateway for local runs and tests. Intents
// stay in requires_payment_method until Succeed or Fail is called.
type MemoryGateway struct {
	mu            sync.Mutex
	intents       map[string]*Intent
	byKey         map[string]string
	webhookSecret string
	created       int
}

func NewMemoryGateway(webhookSecret string) *MemoryGateway {
	return &MemoryGateway{
		intents:       make(map[string]*Intent),
		byKey:         make(map[string]string),
		webhookSecret: webhookSecret,
	}
}

func copyIntent(i *Intent) *Intent {
	c := *i
	c.Metadata = maps.Clone(i.Metadata)
	return &c
}

func (g *MemoryGateway) CreateIntent(_ context.Context, p CreateParams) (*Intent, error) {
	if !p.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if p.IdempotencyKey != "" {
		if id, ok := g.byKey[p.IdempotencyKey]; ok {
			return copyIntent(g.intents[id]), nil
		}
	}

	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	intent := &Intent{
		ID:             id,
		ClientSecret:   id + "_secret",
		Amount:         p.Amount.Round(2),
		Currency:       strings.ToLower(p.Currency),
		Status:         StatusRequiresPaymentMethod,
		IdempotencyKey: p.IdempotencyKey,
		Metadata:       maps.Clone(p.Metadata),
	}
	g.intents[id] = intent
	if p.IdempotencyKey != "" {
		g.byKey[p.IdempotencyKey] = id
	}
	g.created++
	return copyIntent(intent), nil
}

func (g *MemoryGateway) GetIntent(_ context.Context, id string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	return copyIntent(intent), nil
}

func (g *MemoryGateway) CancelIntent(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if !ok {
		return ErrIntentNotFound
	}
	if intent.Status != StatusSucceeded {
		intent.Status = StatusCanceled
	}
	return nil
}

// Succeed marks an intent as paid.
func (g *MemoryGateway) Succeed(id string) error {
	return g.setStatus(id, StatusSucceeded)
}

// Fail returns an intent to requires_payment_method, as a declined card does.
func (g *MemoryGateway) Fail(id string) error {
	return g.setStatus(id, StatusRequiresPaymentMethod)
}

func (g *MemoryGateway) setStatus(id string, status Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if !ok {
		return ErrIntentNotFound
	}
	if intent.Status == StatusCanceled {
		return fmt.Errorf("intent %s is canceled", id)
	}
	intent.Status = status
	return nil
}

// Created returns how many distinct intents were created.
func (g *MemoryGateway) Created() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.created
}

type memoryWebhook struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	IntentID string `json:"intent_id"`
}

// Sign returns the signature ParseWebhook accepts for payload.
func (g *MemoryGateway) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseWebhook accepts {"id","type","intent_id"} payloads signed with Sign.
func (g *MemoryGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if g.webhookSecret == "" {
		return nil, ErrWebhookNotConfigured
	}
	if !hmac.Equal([]byte(g.Sign(payload)), []byte(signature)) {
		return nil, ErrInvalidSignature
	}
	var w memoryWebhook
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, apperror.Wrap(ErrInvalidSignature, err)
	}
	evt := &WebhookEvent{ID: w.ID, Type: w.Type, IntentID: w.IntentID}
	if intent, err := g.GetIntent(context.Background(), w.IntentID); err == nil {
		evt.Status = intent.Status
		evt.Metadata = intent.Metadata
	}
	return evt, nil
}

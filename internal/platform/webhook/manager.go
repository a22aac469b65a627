// Package webhook delivers referral lifecycle events to registered HTTP
// endpoints. Payloads are HMAC-SHA256 signed, every attempt is logged, and
// failed deliveries are retried with a fixed delay and a bounded attempt
// count. Endpoint management is admin-only at the routing layer.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/platform/metrics"
)

// Event types published by the referral workflow.
const (
	EventReferralCreated       = "referral.created"
	EventReferralStatusChanged = "referral.status_changed"
	EventTest                  = "webhook.test"
)

// DefaultEvents is the subscription applied when a registration names none.
func DefaultEvents() []string {
	return []string{EventReferralCreated, EventReferralStatusChanged}
}

const (
	statusActive = "active"
	statusPaused = "paused"

	deliverySuccess = "success"
	deliveryFailed  = "failed"
)

// Endpoint is a registered webhook destination.
type Endpoint struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret,omitempty"`
	Events    []string  `json:"events"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// DeliveryAttempt records one POST to one endpoint.
type DeliveryAttempt struct {
	ID           uuid.UUID     `json:"id"`
	EndpointID   uuid.UUID     `json:"endpoint_id"`
	EventType    string        `json:"event_type"`
	EventID      uuid.UUID     `json:"event_id"`
	Payload      []byte        `json:"payload"`
	Signature    string        `json:"signature"`
	StatusCode   int           `json:"status_code"`
	ResponseBody string        `json:"response_body"`
	Duration     time.Duration `json:"duration_ns"`
	Attempt      int           `json:"attempt"`
	Status       string        `json:"status"`
	Error        string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Event is the envelope POSTed to subscribers.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Resource   string          `json:"resource"`
	ResourceID string          `json:"resource_id"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewEvent builds an event envelope around an arbitrary payload value.
func NewEvent(eventType, resource, resourceID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event payload: %w", err)
	}
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		Resource:   resource,
		ResourceID: resourceID,
		Payload:    raw,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// DeliveryResult summarises the final outcome for one endpoint.
type DeliveryResult struct {
	EndpointID uuid.UUID `json:"endpoint_id"`
	Success    bool      `json:"success"`
	StatusCode int       `json:"status_code"`
	Error      string    `json:"error,omitempty"`
}

// Store persists endpoints and their delivery log.
type Store interface {
	CreateEndpoint(ctx context.Context, ep *Endpoint) error
	GetEndpoint(ctx context.Context, id uuid.UUID) (*Endpoint, error)
	ListEndpoints(ctx context.Context, limit, offset int) ([]*Endpoint, int, error)
	UpdateEndpoint(ctx context.Context, ep *Endpoint) error
	DeleteEndpoint(ctx context.Context, id uuid.UUID) error
	RecordDelivery(ctx context.Context, d *DeliveryAttempt) error
	ListDeliveries(ctx context.Context, endpointID uuid.UUID, limit, offset int) ([]*DeliveryAttempt, int, error)
	GetDelivery(ctx context.Context, id uuid.UUID) (*DeliveryAttempt, error)
}

// MemoryStore is a thread-safe in-memory Store. It backs tests and
// single-process development runs; deliveries vanish on restart.
type MemoryStore struct {
	mu            sync.RWMutex
	endpoints     map[uuid.UUID]*Endpoint
	deliveries    map[uuid.UUID]*DeliveryAttempt
	endpointOrder []uuid.UUID
	deliveryOrder []uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		endpoints:  make(map[uuid.UUID]*Endpoint),
		deliveries: make(map[uuid.UUID]*DeliveryAttempt),
	}
}

func (s *MemoryStore) CreateEndpoint(_ context.Context, ep *Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[ep.ID] = ep
	s.endpointOrder = append(s.endpointOrder, ep.ID)
	return nil
}

func (s *MemoryStore) GetEndpoint(_ context.Context, id uuid.UUID) (*Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.endpoints[id]
	if !ok {
		return nil, fmt.Errorf("endpoint %s not found", id)
	}
	return ep, nil
}

func (s *MemoryStore) ListEndpoints(_ context.Context, limit, offset int) ([]*Endpoint, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*Endpoint
	for _, id := range s.endpointOrder {
		if ep := s.endpoints[id]; ep != nil {
			all = append(all, ep)
		}
	}
	total := len(all)
	if offset >= total {
		return []*Endpoint{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *MemoryStore) UpdateEndpoint(_ context.Context, ep *Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.endpoints[ep.ID]; !ok {
		return fmt.Errorf("endpoint %s not found", ep.ID)
	}
	s.endpoints[ep.ID] = ep
	return nil
}

func (s *MemoryStore) DeleteEndpoint(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.endpoints[id]; !ok {
		return fmt.Errorf("endpoint %s not found", id)
	}
	delete(s.endpoints, id)
	for i, eid := range s.endpointOrder {
		if eid == id {
			s.endpointOrder = append(s.endpointOrder[:i], s.endpointOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) RecordDelivery(_ context.Context, d *DeliveryAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliveries[d.ID]; !ok {
		s.deliveryOrder = append(s.deliveryOrder, d.ID)
	}
	s.deliveries[d.ID] = d
	return nil
}

func (s *MemoryStore) ListDeliveries(_ context.Context, endpointID uuid.UUID, limit, offset int) ([]*DeliveryAttempt, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []*DeliveryAttempt
	for _, id := range s.deliveryOrder {
		d := s.deliveries[id]
		if d != nil && d.EndpointID == endpointID {
			filtered = append(filtered, d)
		}
	}
	total := len(filtered)
	if offset >= total {
		return []*DeliveryAttempt{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return filtered[offset:end], total, nil
}

func (s *MemoryStore) GetDelivery(_ context.Context, id uuid.UUID) (*DeliveryAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deliveries[id]
	if !ok {
		return nil, fmt.Errorf("delivery %s not found", id)
	}
	return d, nil
}

// SignPayload computes the hex-encoded HMAC-SHA256 of payload under secret.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches payload under secret.
// Receivers use this to authenticate deliveries.
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithHTTPClient overrides the delivery HTTP client.
func WithHTTPClient(c *http.Client) ManagerOption {
	return func(m *Manager) { m.httpClient = c }
}

// WithMaxAttempts bounds how many times one delivery is tried.
func WithMaxAttempts(n int) ManagerOption {
	return func(m *Manager) { m.maxAttempts = n }
}

// WithRetryDelay sets the pause between delivery attempts.
func WithRetryDelay(d time.Duration) ManagerOption {
	return func(m *Manager) { m.retryDelay = d }
}

// WithLogger attaches a logger for delivery outcomes.
func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// Manager orchestrates endpoint registration and event delivery.
type Manager struct {
	store       Store
	httpClient  *http.Client
	maxAttempts int
	retryDelay  time.Duration
	log         zerolog.Logger
}

func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:       store,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		maxAttempts: 3,
		retryDelay:  10 * time.Second,
		log:         zerolog.Nop(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Store exposes the underlying store to the HTTP handler.
func (m *Manager) Store() Store {
	return m.store
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func validateEndpointURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}

// RegisterEndpoint validates and persists a destination. An empty secret is
// replaced with a cryptographically random one; an empty event list
// subscribes to every referral event.
func (m *Manager) RegisterEndpoint(ctx context.Context, rawURL, secret string, events []string) (*Endpoint, error) {
	if err := validateEndpointURL(rawURL); err != nil {
		return nil, err
	}
	if secret == "" {
		s, err := generateSecret()
		if err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		secret = s
	}
	if len(events) == 0 {
		events = DefaultEvents()
	}

	ep := &Endpoint{
		ID:        uuid.New(),
		URL:       rawURL,
		Secret:    secret,
		Events:    events,
		Status:    statusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.CreateEndpoint(ctx, ep); err != nil {
		return nil, err
	}
	return ep, nil
}

// PauseEndpoint stops deliveries to an endpoint without losing its config.
func (m *Manager) PauseEndpoint(ctx context.Context, id uuid.UUID) error {
	ep, err := m.store.GetEndpoint(ctx, id)
	if err != nil {
		return err
	}
	ep.Status = statusPaused
	return m.store.UpdateEndpoint(ctx, ep)
}

// ResumeEndpoint re-activates a paused endpoint.
func (m *Manager) ResumeEndpoint(ctx context.Context, id uuid.UUID) error {
	ep, err := m.store.GetEndpoint(ctx, id)
	if err != nil {
		return err
	}
	ep.Status = statusActive
	return m.store.UpdateEndpoint(ctx, ep)
}

// eventMatches accepts exact types plus "*.suffix" and "prefix.*" patterns.
func eventMatches(pattern, eventType string) bool {
	if pattern == eventType {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(eventType, pattern[1:])
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(eventType, pattern[:len(pattern)-1])
	}
	return false
}

func endpointMatchesEvent(ep *Endpoint, eventType string) bool {
	for _, pat := range ep.Events {
		if eventMatches(pat, eventType) {
			return true
		}
	}
	return false
}

// Deliver fans the event out to every active, subscribed endpoint. A failed
// delivery is retried up to the attempt bound with a fixed delay between
// tries; the final outcome per endpoint is what gets returned and counted.
func (m *Manager) Deliver(ctx context.Context, event Event) []DeliveryResult {
	endpoints, _, err := m.store.ListEndpoints(ctx, 1000, 0)
	if err != nil {
		m.log.Error().Err(err).Msg("webhook endpoint listing failed")
		return nil
	}

	var results []DeliveryResult
	for _, ep := range endpoints {
		if ep.Status != statusActive || !endpointMatchesEvent(ep, event.Type) {
			continue
		}

		attempt := m.attemptDelivery(ctx, ep, event, 1)
		for try := 2; attempt.Status != deliverySuccess && try <= m.maxAttempts; try++ {
			if !sleepCtx(ctx, m.retryDelay) {
				break
			}
			attempt = m.attemptDelivery(ctx, ep, event, try)
		}

		ok := attempt.Status == deliverySuccess
		metrics.RecordWebhookDelivery(event.Type, ok)
		if !ok {
			m.log.Warn().
				Str("endpoint", ep.ID.String()).
				Str("event", event.Type).
				Int("attempts", attempt.Attempt).
				Str("error", attempt.Error).
				Msg("webhook delivery failed")
		}
		results = append(results, DeliveryResult{
			EndpointID: ep.ID,
			Success:    ok,
			StatusCode: attempt.StatusCode,
			Error:      attempt.Error,
		})
	}
	return results
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// DeliverToEndpoint signs and POSTs one event to one endpoint, recording
// the outcome regardless of subscription or status.
func (m *Manager) DeliverToEndpoint(ctx context.Context, ep *Endpoint, event Event) *DeliveryAttempt {
	return m.attemptDelivery(ctx, ep, event, 1)
}

func (m *Manager) attemptDelivery(ctx context.Context, ep *Endpoint, event Event, attemptNo int) *DeliveryAttempt {
	payload, _ := json.Marshal(event)
	sig := SignPayload(payload, ep.Secret)
	now := time.Now().UTC()

	attempt := &DeliveryAttempt{
		ID:         uuid.New(),
		EndpointID: ep.ID,
		EventType:  event.Type,
		EventID:    event.ID,
		Payload:    payload,
		Signature:  sig,
		Attempt:    attemptNo,
		Status:     deliveryFailed,
		CreatedAt:  now,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(payload))
	if err != nil {
		attempt.Error = err.Error()
		m.store.RecordDelivery(ctx, attempt)
		return attempt
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", "sha256="+sig)
	req.Header.Set("X-Webhook-ID", ep.ID.String())
	req.Header.Set("X-Webhook-Timestamp", now.Format(time.RFC3339))

	start := time.Now()
	resp, err := m.httpClient.Do(req)
	attempt.Duration = time.Since(start)
	if err != nil {
		attempt.Error = err.Error()
		m.store.RecordDelivery(ctx, attempt)
		return attempt
	}
	defer resp.Body.Close()

	attempt.StatusCode = resp.StatusCode
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	attempt.ResponseBody = string(body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		attempt.Status = deliverySuccess
	} else {
		attempt.Error = fmt.Sprintf("non-2xx response: %d", resp.StatusCode)
	}

	m.store.RecordDelivery(ctx, attempt)
	return attempt
}

// RetryDelivery re-sends a logged delivery as a fresh attempt with the
// counter carried forward.
func (m *Manager) RetryDelivery(ctx context.Context, deliveryID uuid.UUID) (*DeliveryAttempt, error) {
	original, err := m.store.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("delivery not found: %w", err)
	}
	ep, err := m.store.GetEndpoint(ctx, original.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("endpoint not found: %w", err)
	}

	var event Event
	if err := json.Unmarshal(original.Payload, &event); err != nil {
		return nil, fmt.Errorf("unmarshal original payload: %w", err)
	}

	attempt := m.attemptDelivery(ctx, ep, event, original.Attempt+1)
	metrics.RecordWebhookDelivery(event.Type, attempt.Status == deliverySuccess)
	return attempt, nil
}

// TestEndpoint sends a synthetic event so operators can verify connectivity
// before real referral traffic flows.
func (m *Manager) TestEndpoint(ctx context.Context, endpointID uuid.UUID) (*DeliveryAttempt, error) {
	ep, err := m.store.GetEndpoint(ctx, endpointID)
	if err != nil {
		return nil, fmt.Errorf("endpoint not found: %w", err)
	}
	event, err := NewEvent(EventTest, "webhook", ep.ID.String(), map[string]bool{"test": true})
	if err != nil {
		return nil, err
	}
	return m.DeliverToEndpoint(ctx, ep, event), nil
}

// GetDeliveryLogs pages through the delivery log of one endpoint.
func (m *Manager) GetDeliveryLogs(ctx context.Context, endpointID uuid.UUID, limit, offset int) ([]*DeliveryAttempt, int, error) {
	return m.store.ListDeliveries(ctx, endpointID, limit, offset)
}

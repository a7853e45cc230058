package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupMessagingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every pooled connection would otherwise get its own in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&OutboxEntry{}, &ProcessedEvent{}))
	return db
}

func testMessage(topic, key, eventType string) Message {
	return Message{
		Topic: topic,
		Key:   []byte(key),
		Value: []byte("payload-" + key),
		Headers: Headers{
			HeaderEventID:   uuid.NewString(),
			HeaderEventType: eventType,
		},
	}
}

// recordingPublisher captures published messages and fails for event ids
// listed in failFor.
type recordingPublisher struct {
	mu        sync.Mutex
	published []Message
	failFor   map[string]error
	closed    bool
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{failFor: make(map[string]error)}
}

func (p *recordingPublisher) Publish(_ context.Context, msgs ...Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		if err, ok := p.failFor[m.EventID()]; ok {
			return err
		}
		p.published = append(p.published, m)
	}
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPublisher) fail(eventID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failFor[eventID] = errors.New("broker unavailable")
}

func (p *recordingPublisher) recover(eventID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failFor, eventID)
}

func (p *recordingPublisher) eventIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.published))
	for i, m := range p.published {
		out[i] = m.EventID()
	}
	return out
}

// recordingMetrics counts instrumentation calls.
type recordingMetrics struct {
	mu           sync.Mutex
	published    int
	consumed     int
	consumeErrs  int
	deadLettered int
	duplicates   int
	backlog      int64
}

func (m *recordingMetrics) MessagePublished(string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published++
}

func (m *recordingMetrics) MessageConsumed(_ string, _ string, err error, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumed++
	if err != nil {
		m.consumeErrs++
	}
}

func (m *recordingMetrics) MessageDeadLettered(string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadLettered++
}

func (m *recordingMetrics) DuplicateSkipped(string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duplicates++
}

func (m *recordingMetrics) OutboxBacklog(pending int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backlog = pending
}

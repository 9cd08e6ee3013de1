package service

import (
	"sync"
	"testing"

	"github.com/ikkim/cpportal-backend/internal/db"
	ws "github.com/ikkim/cpportal-backend/internal/websocket"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })
	return testDB
}

type published struct {
	target string // user, role, invalidate
	userID uint
	role   string
	event  ws.Event
}

// recordingPublisher captures every realtime event in order
type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) PublishToUser(userID uint, event ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{target: "user", userID: userID, event: event})
}

func (p *recordingPublisher) PublishToRole(role string, event ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{target: "role", role: role, event: event})
}

func (p *recordingPublisher) InvalidateSession(userID uint, event ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{target: "invalidate", userID: userID, event: event})
}

func (p *recordingPublisher) ofType(eventType string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

package livefeed_test

import (
	"proctorportal/backend/internal/models"
	"sync"
)

type MockClient struct {
	id          string
	RecvChannel chan models.ViolationEvent

	mu     sync.Mutex
	closed bool
}

func newMockClient(id string, buffer int) *MockClient {
	return &MockClient{
		id:          id,
		RecvChannel: make(chan models.ViolationEvent, buffer),
	}
}

func (c *MockClient) GetID() string {
	return c.id
}

func (c *MockClient) GetSendChannel() chan<- models.ViolationEvent {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

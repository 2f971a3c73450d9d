package service

import (
	"sync"

	"github.com/ciphergram/ciphergram-server/internal/model"
)

// fakeChannel is an in-memory delivery channel.
type fakeChannel struct {
	mu      sync.Mutex
	pushes  []model.WirePayload
	pushErr error
	closed  bool
}

func (c *fakeChannel) Push(p model.WirePayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pushErr != nil {
		return c.pushErr
	}
	c.pushes = append(c.pushes, p)
	return nil
}

func (c *fakeChannel) Close(string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

package chathub_test

import (
	"circleup/backend/internal/models"
	"sync/atomic"
)

type MockClient struct {
	connID      string
	userID      string
	RecvChannel chan models.ServerEvent
	runs        atomic.Int32
	closes      atomic.Int32
}

func newMockClient(connID, userID string) *MockClient {
	return &MockClient{
		connID:      connID,
		userID:      userID,
		RecvChannel: make(chan models.ServerEvent, 10),
	}
}

func (c *MockClient) GetConnID() string { return c.connID }

func (c *MockClient) GetUserID() string { return c.userID }

func (c *MockClient) GetSendChannel() chan<- models.ServerEvent {
	return c.RecvChannel
}

func (c *MockClient) Run() { c.runs.Add(1) }

func (c *MockClient) Close() { c.closes.Add(1) }

package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskhive/apiserver/internal/mq"
)

type fakeBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
}

func (f *fakeBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	f.channel = channel
	f.data = data
	f.attrs = attrs
	return "msg-1", f.err
}

func (f *fakeBackend) Subscribe(_ context.Context, _ string, _ mq.Handler) error {
	return nil
}

func (f *fakeBackend) Close() error { return nil }

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(logrus.StandardLogger().Out)
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestPublisher_Publish(t *testing.T) {
	backend := &fakeBackend{}
	pub := NewPublisher(mq.New(backend), "test-events", newTestLogger())

	pub.Publish(context.Background(), TaskCreated, 7, 42)

	assert.Equal(t, "test-events", backend.channel)
	assert.Equal(t, map[string]string{"type": TaskCreated}, backend.attrs)

	var event Event
	require.NoError(t, json.Unmarshal(backend.data, &event))
	assert.Equal(t, TaskCreated, event.Type)
	assert.Equal(t, 7, event.ActorID)
	assert.Equal(t, 42, event.SubjectID)
	assert.False(t, event.At.IsZero())
}

func TestPublisher_PublishErrorIsSwallowed(t *testing.T) {
	backend := &fakeBackend{err: errors.New("broker down")}
	pub := NewPublisher(mq.New(backend), "test-events", newTestLogger())

	// Must not panic or surface the error.
	pub.Publish(context.Background(), UserBlocked, 1, 2)
}

func TestPublisher_NilIsSafe(t *testing.T) {
	var pub *Publisher
	pub.Publish(context.Background(), TaskDeleted, 1, 2)
	assert.NoError(t, pub.Close())
}

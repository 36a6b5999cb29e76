package nats_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	natsadapter "github.com/aretw0/conductor/pkg/adapters/nats"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	subject string
	data    []byte
}

type fakeConn struct {
	published []message
	err       error
	closed    bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, message{subject, data})
	return nil
}

func (f *fakeConn) Close() { f.closed = true }

func TestPublisher_Publish(t *testing.T) {
	fc := &fakeConn{}
	p := natsadapter.NewWithConn(fc, "")

	ev := &domain.RunEvent{
		EventBase: domain.EventBase{Timestamp: time.Unix(0, 0).UTC(), Type: domain.EventRunEnd, RunID: "r1"},
		Completed: 2,
		Total:     3,
		Status:    domain.RunFailed,
	}
	require.NoError(t, p.Publish(context.Background(), string(domain.EventRunEnd), ev))

	require.Len(t, fc.published, 1)
	assert.Equal(t, "conductor.events.run_end", fc.published[0].subject)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(fc.published[0].data, &decoded))
	assert.Equal(t, "r1", decoded["run_id"])
	assert.Equal(t, "failed", decoded["status"])

	require.NoError(t, p.Close())
	assert.True(t, fc.closed)
}

func TestPublisher_Errors(t *testing.T) {
	fc := &fakeConn{err: errors.New("disconnected")}
	p := natsadapter.NewWithConn(fc, "custom")
	assert.ErrorContains(t, p.Publish(context.Background(), "x", map[string]any{}), "disconnected")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, natsadapter.NewWithConn(&fakeConn{}, "").Publish(ctx, "x", nil), context.Canceled)
}

package direct

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentreplay/agentreplay-sub002/errors"
	"github.com/agentreplay/agentreplay-sub002/transport"
)

func TestInvoke_NoConnection(t *testing.T) {
	tr := NewWithConn(nil)

	_, err := tr.Invoke(context.Background(), transport.Request{Command: "list_projects"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConnectionClosed)
	assert.True(t, errors.IsTransient(err))
}

func TestKindAndClose(t *testing.T) {
	tr := NewWithConn(nil)

	assert.Equal(t, "direct", tr.Kind())
	// Borrowed (or absent) connections are not drained on Close
	assert.NoError(t, tr.Close())
}

func TestNew_UnreachableHost(t *testing.T) {
	// Nothing listens on this port; connect must fail fatally, the
	// dispatcher never retries transport selection.
	_, err := New("nats://127.0.0.1:1")
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.ErrorIs(t, err, errors.ErrConnectionFailed)
}

package queues

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	labels  []string
	err     error
	release chan struct{}
}

func (r *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, payload []byte, logLabel string) error {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = append(r.labels, logLabel)
	return r.err
}

func (r *recordingPublisher) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.labels...)
}

func TestAsyncPublisher_PreservesOrderAndDrains(t *testing.T) {
	next := &recordingPublisher{}
	p := NewAsyncPublisher(next, 16, time.Second, discardLogger(t))

	for _, l := range []string{"a", "b", "c", "d"} {
		require.NoError(t, p.Publish(context.Background(), "x", "y", nil, l))
	}

	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, []string{"a", "b", "c", "d"}, next.got())
}

func TestAsyncPublisher_DoesNotBlockWhenFull(t *testing.T) {
	next := &recordingPublisher{release: make(chan struct{})}
	p := NewAsyncPublisher(next, 1, 0, discardLogger(t))

	// One message can be held by the worker and one by the buffer.
	var errs []error
	for i := 0; i < 3; i++ {
		errs = append(errs, p.Publish(context.Background(), "x", "y", nil, "m"))
	}
	full := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, common.ErrDispatch)
			full++
		}
	}
	assert.GreaterOrEqual(t, full, 1)

	close(next.release)
	require.NoError(t, p.Close(context.Background()))
}

func TestAsyncPublisher_DeliveryErrorsAreSwallowed(t *testing.T) {
	next := &recordingPublisher{err: errors.New("broker down")}
	p := NewAsyncPublisher(next, 4, time.Second, discardLogger(t))

	require.NoError(t, p.Publish(context.Background(), "x", "y", nil, "m"))
	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, []string{"m"}, next.got())
}

func TestAsyncPublisher_PublishAfterClose(t *testing.T) {
	p := NewAsyncPublisher(&recordingPublisher{}, 4, 0, discardLogger(t))
	require.NoError(t, p.Close(context.Background()))
	require.NoError(t, p.Close(context.Background()))

	assert.ErrorIs(t, p.Publish(context.Background(), "x", "y", nil, "m"), common.ErrDispatch)
}

func TestAsyncPublisher_CloseHonoursContext(t *testing.T) {
	next := &recordingPublisher{release: make(chan struct{})}
	p := NewAsyncPublisher(next, 4, 0, discardLogger(t))
	require.NoError(t, p.Publish(context.Background(), "x", "y", nil, "m"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Close(ctx), context.DeadlineExceeded)

	close(next.release)
}

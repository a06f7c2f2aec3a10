package autograde_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"graderservice/internal/autograde"
	"graderservice/internal/model"
)

type memoryClaims struct {
	mu     sync.Mutex
	keys   map[string]struct{}
	values map[string][]byte
}

func newMemoryClaims() *memoryClaims {
	return &memoryClaims{keys: make(map[string]struct{}), values: make(map[string][]byte)}
}

func (m *memoryClaims) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}

func (m *memoryClaims) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func (m *memoryClaims) Put(_ context.Context, key string, data []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = data
	return nil
}

func (m *memoryClaims) Lookup(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.values[key]
	return data, ok, nil
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Send(ctx context.Context, topic, key string, message interface{}) error {
	args := m.Called(ctx, topic, key, message)
	return args.Error(0)
}

func TestKey_String(t *testing.T) {
	id := uuid.MustParse("0190f7a2-0000-7000-8000-000000000001")
	key := autograde.Key{SubmissionId: id, Revision: "abc123"}
	assert.Equal(t, "autograde:0190f7a2-0000-7000-8000-000000000001:abc123", key.String())
}

func TestGate_Enqueue(t *testing.T) {
	key := autograde.Key{SubmissionId: uuid.New(), Revision: "abc123"}
	payload := autograde.Payload{SubmissionId: key.SubmissionId, Revision: "abc123", Username: "bob"}

	t.Run("publishes once", func(t *testing.T) {
		publisher := new(MockPublisher)
		publisher.On("Send", mock.Anything, "autograde-tasks", key.String(), mock.MatchedBy(func(p autograde.Payload) bool {
			return p.Username == "bob" && !p.EnqueuedAt.IsZero()
		})).Return(nil).Once()

		gate := autograde.NewGate(newMemoryClaims(), publisher, "autograde-tasks", time.Hour, nil)

		ok, err := gate.Enqueue(context.Background(), key, payload)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = gate.Enqueue(context.Background(), key, payload)
		require.NoError(t, err)
		assert.False(t, ok)

		publisher.AssertExpectations(t)
	})

	t.Run("publish failure releases claim", func(t *testing.T) {
		publisher := new(MockPublisher)
		publisher.On("Send", mock.Anything, "autograde-tasks", key.String(), mock.Anything).
			Return(errors.New("broker down")).Once()
		publisher.On("Send", mock.Anything, "autograde-tasks", key.String(), mock.Anything).
			Return(nil).Once()

		gate := autograde.NewGate(newMemoryClaims(), publisher, "autograde-tasks", time.Hour, nil)

		ok, err := gate.Enqueue(context.Background(), key, payload)
		assert.Error(t, err)
		assert.False(t, ok)

		ok, err = gate.Enqueue(context.Background(), key, payload)
		require.NoError(t, err)
		assert.True(t, ok)

		publisher.AssertExpectations(t)
	})

	t.Run("different revisions are different tasks", func(t *testing.T) {
		publisher := new(MockPublisher)
		publisher.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()

		gate := autograde.NewGate(newMemoryClaims(), publisher, "autograde-tasks", time.Hour, nil)

		ok1, err := gate.Enqueue(context.Background(), key, payload)
		require.NoError(t, err)
		ok2, err := gate.Enqueue(context.Background(), autograde.Key{SubmissionId: key.SubmissionId, Revision: "def456"}, payload)
		require.NoError(t, err)

		assert.True(t, ok1)
		assert.True(t, ok2)
		publisher.AssertExpectations(t)
	})
}

type countingPublisher struct {
	sends atomic.Int32
}

func (c *countingPublisher) Send(context.Context, string, string, interface{}) error {
	c.sends.Add(1)
	time.Sleep(time.Millisecond)
	return nil
}

func TestGate_EnqueueConcurrent(t *testing.T) {
	publisher := &countingPublisher{}
	gate := autograde.NewGate(newMemoryClaims(), publisher, "autograde-tasks", time.Hour, nil)
	key := autograde.Key{SubmissionId: uuid.New(), Revision: "abc123"}

	var wg sync.WaitGroup
	var enqueued atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := gate.Enqueue(context.Background(), key, autograde.Payload{})
			assert.NoError(t, err)
			if ok {
				enqueued.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), enqueued.Load())
	assert.Equal(t, int32(1), publisher.sends.Load())
}

func TestGate_Outcome(t *testing.T) {
	gate := autograde.NewGate(newMemoryClaims(), new(MockPublisher), "autograde-tasks", time.Hour, nil)
	key := autograde.Key{SubmissionId: uuid.New(), Revision: "abc123"}
	ctx := context.Background()

	got, err := gate.Outcome(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got, "nothing reported yet")

	score := 7.0
	result := model.GradingResult{SubmissionId: key.SubmissionId, Revision: "abc123", Success: true, Score: &score}
	require.NoError(t, gate.RecordOutcome(ctx, key, result))

	got, err = gate.Outcome(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, result, *got)

	other, err := gate.Outcome(ctx, autograde.Key{SubmissionId: key.SubmissionId, Revision: "def456"})
	require.NoError(t, err)
	assert.Nil(t, other)
}

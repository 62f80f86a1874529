package notifications

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRedis answers EXISTS and SET from a map through a go-redis hook, so the
// ledger runs against a real client without a server.
type memRedis struct {
	keys map[string][]interface{}
	err  error
}

func (m *memRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (m *memRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (m *memRedis) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		if m.err != nil {
			cmd.SetErr(m.err)
			return m.err
		}
		args := cmd.Args()
		switch c := cmd.(type) {
		case *redis.IntCmd:
			var n int64
			for _, k := range args[1:] {
				if _, ok := m.keys[fmt.Sprint(k)]; ok {
					n++
				}
			}
			c.SetVal(n)
		case *redis.StatusCmd:
			m.keys[fmt.Sprint(args[1])] = args
			c.SetVal("OK")
		default:
			return fmt.Errorf("unexpected command %s", cmd.Name())
		}
		return nil
	}
}

func newHookedLedger(t *testing.T) (*RedisLedger, *memRedis) {
	t.Helper()
	mem := &memRedis{keys: map[string][]interface{}{}}
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	client.AddHook(mem)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLedger(client), mem
}

func TestLedgerKeyIsPerComponentAndDay(t *testing.T) {
	id := uuid.MustParse("6f1c2f9e-3b7a-4f44-9d7e-0a2b1c3d4e5f")
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "immowaechter:sent:6f1c2f9e-3b7a-4f44-9d7e-0a2b1c3d4e5f:2025-01-01", ledgerKey(id, day))
	assert.NotEqual(t, ledgerKey(id, day), ledgerKey(id, day.AddDate(0, 0, 1)))
}

func TestAMQPPublisherDisabledWithoutURL(t *testing.T) {
	p, err := NewAMQPPublisher("", "maintenance.reminders")
	require.NoError(t, err)
	assert.Nil(t, p)

	// A nil publisher is usable and drops events.
	assert.NoError(t, p.Publish(context.Background(), Record{}))
	assert.NoError(t, p.Close())
}

func TestRedisLedgerMarksPerDay(t *testing.T) {
	ctx := context.Background()
	ledger, mem := newHookedLedger(t)
	id := uuid.New()
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	sent, err := ledger.WasSent(ctx, id, day)
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, ledger.MarkSent(ctx, id, day))

	sent, err = ledger.WasSent(ctx, id, day)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = ledger.WasSent(ctx, id, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, sent, "a new day is a new reminder")

	args := mem.keys[ledgerKey(id, day)]
	require.Len(t, args, 5)
	assert.Equal(t, "ex", args[3])
	assert.EqualValues(t, 48*60*60, args[4])
}

func TestRedisLedgerSurfacesErrors(t *testing.T) {
	ctx := context.Background()
	ledger, mem := newHookedLedger(t)
	mem.err = errors.New("connection refused")

	_, err := ledger.WasSent(ctx, uuid.New(), time.Now())
	assert.ErrorContains(t, err, "ledger lookup")

	err = ledger.MarkSent(ctx, uuid.New(), time.Now())
	assert.ErrorContains(t, err, "ledger write")
}

package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tempora-app/tempora/internal/period"
	"github.com/tempora-app/tempora/internal/shared"
)

type memorySettings struct {
	values map[string][]byte
	reads  int
}

func newMemorySettings() *memorySettings {
	return &memorySettings{values: make(map[string][]byte)}
}

func (m *memorySettings) GetRaw(ctx context.Context, key string) ([]byte, error) {
	m.reads++
	raw, ok := m.values[key]
	if !ok {
		return nil, ErrNotSet
	}
	return raw, nil
}

func (m *memorySettings) PutRaw(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = data
	return nil
}

func TestBillingDefaultsWhenUnset(t *testing.T) {
	store := newMemorySettings()
	svc := NewService(store, nil)

	got, err := svc.Billing(context.Background())
	require.NoError(t, err)
	require.Equal(t, period.DefaultSettings(), got)
}

func TestUpdateBillingRoundTrips(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newMemorySettings()
	svc := NewService(store, rdb)

	in := period.Settings{Weekday: 5, Hour: 17, Minute: 0, Zone: "Europe/Berlin", WarnWindowHours: 48}
	saved, err := svc.UpdateBilling(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, in, saved)

	got, err := svc.Billing(context.Background())
	require.NoError(t, err)
	require.Equal(t, in, got)
}

func TestBillingServedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newMemorySettings()
	svc := NewService(store, rdb)

	in := period.Settings{Weekday: 2, Hour: 23, Minute: 59, Zone: "UTC", WarnWindowHours: 24}
	_, err := svc.UpdateBilling(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.Billing(context.Background())
	require.NoError(t, err)
	reads := store.reads

	_, err = svc.Billing(context.Background())
	require.NoError(t, err)
	require.Equal(t, reads, store.reads, "second read should hit the cache")

	// An update drops the cache so the next read goes to the store.
	in.WarnWindowHours = 12
	_, err = svc.UpdateBilling(context.Background(), in)
	require.NoError(t, err)

	got, err := svc.Billing(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12, got.WarnWindowHours)
	require.Greater(t, store.reads, reads)
}

func TestUpdateBillingValidates(t *testing.T) {
	store := newMemorySettings()
	svc := NewService(store, nil)

	cases := []period.Settings{
		{Weekday: 7, Hour: 0, Minute: 0, Zone: "UTC"},
		{Weekday: 2, Hour: 24, Minute: 0, Zone: "UTC"},
		{Weekday: 2, Hour: 23, Minute: 60, Zone: "UTC"},
		{Weekday: 2, Hour: 23, Minute: 59, Zone: ""},
		{Weekday: 2, Hour: 23, Minute: 59, Zone: "Nowhere/Else"},
		{Weekday: 2, Hour: 23, Minute: 59, Zone: "UTC", WarnWindowHours: -1},
	}
	for i, in := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := svc.UpdateBilling(context.Background(), in)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
	require.Empty(t, store.values)
}

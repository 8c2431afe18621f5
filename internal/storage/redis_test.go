package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"

	"github.com/IshaanNene/newsgoat/internal/types"
)

const seenKey = "newsgoat:seen"

func TestRedisCache_ExistsHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	backing := NewMemoryStore()
	cache := newRedisCache(backing, db, seenKey, 0, testLogger())
	ctx := context.TODO()

	mock.ExpectSIsMember(seenKey, "https://a.example/1").SetVal(true)
	ok, err := cache.Exists(ctx, "https://a.example/1")
	assert.NoError(t, err)
	assert.True(t, ok)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRedisCache_ExistsMissBackfills(t *testing.T) {
	db, mock := redismock.NewClientMock()
	backing := NewMemoryStore("https://a.example/1")
	cache := newRedisCache(backing, db, seenKey, 0, testLogger())
	ctx := context.TODO()

	mock.ExpectSIsMember(seenKey, "https://a.example/1").SetVal(false)
	mock.ExpectSAdd(seenKey, "https://a.example/1").SetVal(1)
	ok, err := cache.Exists(ctx, "https://a.example/1")
	assert.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectSIsMember(seenKey, "https://a.example/2").SetVal(false)
	ok, err = cache.Exists(ctx, "https://a.example/2")
	assert.NoError(t, err)
	assert.False(t, ok)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRedisCache_RedisDownFallsThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	backing := NewMemoryStore("https://a.example/1")
	cache := newRedisCache(backing, db, seenKey, 0, testLogger())

	mock.ExpectSIsMember(seenKey, "https://a.example/1").SetErr(errors.New("connection refused"))
	mock.ExpectSAdd(seenKey, "https://a.example/1").SetErr(errors.New("connection refused"))
	ok, err := cache.Exists(context.TODO(), "https://a.example/1")
	assert.NoError(t, err)
	assert.True(t, ok)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRedisCache_Insert(t *testing.T) {
	db, mock := redismock.NewClientMock()
	backing := NewMemoryStore()
	cache := newRedisCache(backing, db, seenKey, time.Hour, testLogger())
	ctx := context.TODO()

	mock.ExpectSAdd(seenKey, "https://a.example/1").SetVal(1)
	mock.ExpectExpire(seenKey, time.Hour).SetVal(true)
	err := cache.Insert(ctx, record("https://a.example/1"))
	assert.NoError(t, err)
	assert.Len(t, backing.Records(), 1)

	// Duplicates are still remembered so the cache converges.
	mock.ExpectSAdd(seenKey, "https://a.example/1").SetVal(0)
	mock.ExpectExpire(seenKey, time.Hour).SetVal(true)
	err = cache.Insert(ctx, record("https://a.example/1"))
	assert.ErrorIs(t, err, types.ErrDuplicate)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
	assert.Equal(t, "redis+memory", cache.Name())
}

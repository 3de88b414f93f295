package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticekit/lattice/errors"
)

type database struct {
	dsn string
}

func TestRegistryRegisterGet(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		r := New(nil)
		r.Register("storage", &database{dsn: "file::memory:"})

		got, ok := r.Get("storage")
		require.True(t, ok)
		assert.Equal(t, "file::memory:", got.(*database).dsn)
	})

	t.Run("AbsentKey", func(t *testing.T) {
		r := New(nil)
		_, ok := r.Get("missing")
		assert.False(t, ok)
	})

	t.Run("UpsertLastWriteWins", func(t *testing.T) {
		r := New(nil)
		r.Register("storage", &database{dsn: "old"})
		r.Register("storage", &database{dsn: "new"})

		got, ok := r.Get("storage")
		require.True(t, ok)
		assert.Equal(t, "new", got.(*database).dsn)
		assert.Equal(t, 1, r.Len())
	})
}

func TestRegistryUnregister(t *testing.T) {
	r := New(nil)
	r.Register("storage", &database{})

	r.Unregister("storage")

	_, ok := r.Get("storage")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	// Removing an absent key is harmless.
	r.Unregister("storage")
}

func TestRegistryAll(t *testing.T) {
	r := New(nil)
	r.Register("storage", &database{})
	r.Register("cache", "memcache")

	all := r.All()
	assert.Len(t, all, 2)

	// Snapshot: mutating the copy leaves the registry intact.
	delete(all, "storage")
	_, ok := r.Get("storage")
	assert.True(t, ok)
}

func TestRegistryAs(t *testing.T) {
	t.Run("TypedLookup", func(t *testing.T) {
		r := New(nil)
		r.Register("storage", &database{dsn: "file::memory:"})

		db, err := As[*database](r, "storage")
		require.NoError(t, err)
		assert.Equal(t, "file::memory:", db.dsn)
	})

	t.Run("AbsentKey", func(t *testing.T) {
		r := New(nil)
		_, err := As[*database](r, "storage")
		require.Error(t, err)
		assert.True(t, errors.IsServiceNotFound(err))
	})

	t.Run("WrongType", func(t *testing.T) {
		r := New(nil)
		r.Register("storage", "not a database")

		_, err := As[*database](r, "storage")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage")
	})

	t.Run("InterfaceTarget", func(t *testing.T) {
		r := New(nil)
		r.Register("message", "hello")

		s, err := As[string](r, "message")
		require.NoError(t, err)
		assert.Equal(t, "hello", s)
	})
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := New(nil)

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				r.Register("shared", &database{})
			}
		}()

		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				_, _ = r.Get("shared")
				_ = r.Len()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, r.Len())
}

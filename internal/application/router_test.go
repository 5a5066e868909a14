package application_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efisher/swapreview/internal/application"
)

func TestRouter_SerializesSameKey(t *testing.T) {
	router := application.NewRouter()

	var inside, maxInside int
	var mu sync.Mutex

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			err := router.Do("install-1", func() error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
}

func TestRouter_IndependentKeysDoNotBlock(t *testing.T) {
	router := application.NewRouter()

	release := make(chan struct{})
	held := make(chan struct{})

	go func() {
		_ = router.Do("install-1", func() error {
			close(held)
			<-release
			return nil
		})
	}()

	<-held

	// A different partition proceeds while install-1's lock is held.
	done := make(chan error, 1)
	go func() {
		done <- router.Do("install-2", func() error { return nil })
	}()

	require.NoError(t, <-done)
	close(release)
}

func TestRouter_PropagatesError(t *testing.T) {
	router := application.NewRouter()

	err := router.Do("install-1", func() error {
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
}

package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/research"
)

func TestNewService_ValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MaxIterations = 0
	_, err := NewService(cfg, &scriptedProvider{}, staticBackend{}, staticFetcher{})
	assert.Error(t, err)
}

func TestService_StreamStopsWhenConsumerStops(t *testing.T) {
	s := newTestService(t, &scriptedProvider{})

	count := 0
	for e := range s.Stream(context.Background(), research.Topic{Text: "t"}) {
		count++
		assert.NotEqual(t, "report", e.Type)
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestService_StreamCancelled(t *testing.T) {
	s := newTestService(t, &scriptedProvider{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var last Event
	for e := range s.Stream(ctx, research.Topic{Text: "t"}) {
		last = e
	}
	assert.Equal(t, "error", last.Type)
}

func TestService_Research(t *testing.T) {
	s := newTestService(t, &scriptedProvider{failReport: true})
	_, err := s.Research(context.Background(), research.Topic{Text: "t"})

	var pf *research.PipelineFailedError
	require.True(t, errors.As(err, &pf))
}

package qdrant

import (
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/storage"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestSplitAddr(t *testing.T) {
	tests := []struct {
		addr string
		host string
		port int
	}{
		{"", "localhost", 6334},
		{"qdrant", "qdrant", 6334},
		{"qdrant:7000", "qdrant", 7000},
		{"10.0.0.5:bad", "10.0.0.5", 6334},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			host, port := splitAddr(tt.addr)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
		})
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, float32(0), clampScore(-0.3))
	assert.Equal(t, float32(0.42), clampScore(0.42))
	assert.Equal(t, float32(1), clampScore(1.0001))
}

func TestPayloadMapping(t *testing.T) {
	p := core.Payload{Title: "Floods", Link: "https://example.com/floods", Content: "Rivers rose overnight."}
	assert.Equal(t, p, fromPayload(toPayload(p)))
	assert.Equal(t, core.Payload{}, fromPayload(nil))
}

func TestToPointStruct(t *testing.T) {
	ps := toPointStruct(&core.Point{ID: 42, Vector: []float32{0.1, 0.2}})
	assert.Equal(t, uint64(42), ps.GetId().GetNum())
	assert.Equal(t, "", ps.GetPayload()[payloadTitle].GetStringValue())
}

func TestQueryError(t *testing.T) {
	missing := fmt.Errorf("query: %w", status.Error(codes.NotFound, "Collection `news` doesn't exist!"))
	err := queryError("querying", "news", missing)
	assert.ErrorIs(t, err, storage.ErrCollectionNotFound)
	assert.Equal(t, codes.NotFound, status.Code(err))

	err = queryError("querying", "news", status.Error(codes.Unavailable, "connection refused"))
	assert.False(t, errors.Is(err, storage.ErrCollectionNotFound))
	assert.Contains(t, err.Error(), "querying collection news")
}

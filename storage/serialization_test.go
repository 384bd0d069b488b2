package storage

import (
	"testing"

	"github.com/poiesic/newsrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointEncoding(t *testing.T) {
	p := &core.Point{
		ID:     core.ID(1 << 40),
		Vector: []float32{0.25, -1, 3.5},
		Payload: core.Payload{
			Title:   "Storm hits coast",
			Link:    "https://example.com/storm",
			Content: "Winds reached 120km/h, résumé of events.",
		},
	}

	data := MarshalPoint(p)
	decoded, err := UnmarshalPoint(data)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestUnmarshalPoint_Truncated(t *testing.T) {
	data := MarshalPoint(&core.Point{ID: 3, Vector: []float32{1, 2, 3, 4}})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"cut inside vector", data[:4]},
		{"missing payload", data[:len(data)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalPoint(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestCollectionInfoEncoding(t *testing.T) {
	info := CollectionInfo{Dimension: 1024, Metric: MetricCosine}
	decoded, err := UnmarshalCollectionInfo(MarshalCollectionInfo(info))
	require.NoError(t, err)
	assert.Equal(t, info, decoded)

	_, err = UnmarshalCollectionInfo(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, m)

	m, err = ParseMetric("dot")
	require.NoError(t, err)
	assert.Equal(t, "dot", m.String())

	_, err = ParseMetric("manhattan")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestIndexWriteError(t *testing.T) {
	cause := assert.AnError
	bulk := &IndexWriteError{Collection: "news", Err: cause}
	assert.True(t, bulk.Bulk())
	assert.ErrorIs(t, bulk, ErrIndexWrite)
	assert.ErrorIs(t, bulk, cause)

	partial := &IndexWriteError{Collection: "news", IDs: []core.ID{4, 9}}
	assert.False(t, partial.Bulk())
	assert.Contains(t, partial.Error(), "[4 9]")
	assert.ErrorIs(t, partial, ErrIndexWrite)
}

func TestValidateCollectionName(t *testing.T) {
	assert.NoError(t, ValidateCollectionName("news"))
	assert.ErrorIs(t, ValidateCollectionName(""), ErrInvalidCollectionName)
	assert.ErrorIs(t, ValidateCollectionName("a:b"), ErrInvalidCollectionName)
}

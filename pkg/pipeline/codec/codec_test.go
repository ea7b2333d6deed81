package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexfabric/go-pipeline/pkg/pipeline/codec"
)

func TestMsgpackRoundTrip(t *testing.T) {
	t.Parallel()

	c := codec.Msgpack{}

	raw, err := c.Marshal(map[string]any{"epochs": 10, "rate": 0.5})
	require.NoError(t, err)

	value, err := c.Unmarshal(raw)
	require.NoError(t, err)

	values, ok := value.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 10, values["epochs"])
	assert.EqualValues(t, 0.5, values["rate"])
}

func TestMsgpackUnmarshalGarbage(t *testing.T) {
	t.Parallel()

	_, err := codec.Msgpack{}.Unmarshal([]byte{0xc1})
	require.Error(t, err)
}

func TestRawPassthrough(t *testing.T) {
	t.Parallel()

	c := codec.Raw{}

	raw, err := c.Marshal([]byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), raw)

	value, err := c.Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), value)
}

func TestRawRejectsNonBytes(t *testing.T) {
	t.Parallel()

	_, err := codec.Raw{}.Marshal("not bytes")
	require.ErrorIs(t, err, codec.ErrRawValue)
}

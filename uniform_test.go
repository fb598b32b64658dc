package vkframe

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestUniformBuffersAlignment(t *testing.T) {
	for _, align := range []uint64{0, 1, 64, 256} {
		dev := newFakeTransfer()
		u, err := NewUniformBuffers(dev, 3, 128, align)
		require.NoError(t, err)
		assert.Equal(t, 3, u.Count())
		assert.Equal(t, hostCoherent, dev.props[u.Buffer])
		assert.NotZero(t, u.Buffer.Usage&vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit))

		for i := 0; i < u.Count(); i++ {
			s := u.Slice(i)
			if align > 1 {
				assert.Zero(t, s.Offset%align, "slice %d", i)
			}
			assert.Equal(t, uint64(128), s.Size)
			assert.LessOrEqual(t, s.Offset+s.Size, u.Buffer.Size)
			if i > 0 {
				prev := u.Slice(i - 1)
				assert.GreaterOrEqual(t, s.Offset, prev.Offset+prev.Size, "slices do not overlap")
			}
		}
	}
}

func TestUniformBuffersUpdate(t *testing.T) {
	dev := newFakeTransfer()
	u, err := NewUniformBuffers(dev, 2, 8, 256)
	require.NoError(t, err)

	require.NoError(t, u.Update(1, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	mem := dev.backing[u.Buffer]
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, mem.data[256:264])
	assert.Equal(t, make([]byte, 8), mem.data[0:8], "slice 0 untouched")

	err = u.Update(2, []byte{1})
	assert.True(t, errors.Is(err, ErrResourceNotFound))
	assert.Error(t, u.Update(0, make([]byte, 9)))

	u.Destroy()
	assert.Empty(t, dev.live)
}

func TestUniformBuffersInvalid(t *testing.T) {
	dev := newFakeTransfer()
	_, err := NewUniformBuffers(dev, 0, 64, 64)
	assert.Error(t, err)
	_, err = NewUniformBuffers(dev, 2, 0, 64)
	assert.Error(t, err)
	assert.Empty(t, dev.live)
}

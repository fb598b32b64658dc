package vkframe

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestUploadBufferRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, size := range []int{1, 3, 64, 1000, 65536} {
		dev := newFakeTransfer()
		u := NewUploader(dev)

		data := make([]byte, size)
		rng.Read(data)

		buf, err := u.UploadBuffer(data, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
		require.NoError(t, err)
		assert.False(t, buf.HostVisible())
		assert.Equal(t, uint64(size), buf.Size)
		assert.NotZero(t, buf.Usage&vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
		assert.Equal(t, deviceLocal, dev.props[buf])
		assert.Equal(t, 1, dev.liveBuffers(), "staging buffer destroyed after the copy")

		back, err := u.ReadBack(buf)
		require.NoError(t, err)
		assert.Equal(t, data, back)
		assert.Equal(t, 1, dev.liveBuffers())
		assert.Len(t, dev.submits, 2)
	}
}

func TestUploadBufferEmpty(t *testing.T) {
	dev := newFakeTransfer()
	_, err := NewUploader(dev).UploadBuffer(nil, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	assert.Error(t, err)
	assert.Empty(t, dev.submits)
}

func TestUploadBufferSubmitFailureReleasesEverything(t *testing.T) {
	dev := newFakeTransfer()
	dev.failAfter = 1
	u := NewUploader(dev)
	_, err := u.UploadBuffer([]byte{1, 2, 3}, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	require.NoError(t, err)

	_, err = u.UploadBuffer([]byte{4, 5, 6}, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	require.Error(t, err)
	assert.Equal(t, 1, dev.liveBuffers(), "only the first upload survives")
}

func TestReadBackHostVisible(t *testing.T) {
	dev := newFakeTransfer()
	buf, err := dev.CreateBoundBuffer(4, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit), hostCoherent)
	require.NoError(t, err)
	require.NoError(t, buf.Write(0, []byte{9, 8, 7, 6}))

	back, err := NewUploader(dev).ReadBack(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7, 6}, back)
	assert.Empty(t, dev.submits, "no copy needed")
}

func TestReadBackNeedsTransferSource(t *testing.T) {
	dev := newFakeTransfer()
	buf, err := dev.CreateBoundBuffer(4, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), deviceLocal)
	require.NoError(t, err)
	_, err = NewUploader(dev).ReadBack(buf)
	assert.Error(t, err)
}

func TestUploadImageBarrierOrder(t *testing.T) {
	dev := newFakeTransfer()
	pixels := make([]byte, 4*4*4)
	for i := range pixels {
		pixels[i] = byte(i)
	}
	img, err := NewUploader(dev).UploadImage(pixels, 4, 4, vk.FormatR8g8b8a8Unorm)
	require.NoError(t, err)
	assert.Equal(t, vk.Extent2D{Width: 4, Height: 4}, img.Extent)
	assert.NotZero(t, img.Usage&vk.ImageUsageFlags(vk.ImageUsageSampledBit))

	require.Len(t, dev.submits, 1)
	cmd := dev.submits[0]
	assert.Equal(t, []string{"barrier", "copyBufferToImage", "barrier"}, cmd.names())

	first := cmd.ops[0].args[0].(ImageTransition)
	assert.Equal(t, vk.ImageLayoutUndefined, first.OldLayout)
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, first.NewLayout)
	last := cmd.ops[2].args[0].(ImageTransition)
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, last.OldLayout)
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, last.NewLayout)
	for _, op := range cmd.ops {
		assert.Same(t, img, op.args[len(op.args)-1])
	}

	assert.Equal(t, pixels, dev.pixels[img])
	assert.Zero(t, dev.liveBuffers(), "staging buffer destroyed")
}

func TestUploadImageValidatesSize(t *testing.T) {
	dev := newFakeTransfer()
	u := NewUploader(dev)

	_, err := u.UploadImage(make([]byte, 15), 2, 2, vk.FormatR8g8b8a8Unorm)
	assert.Error(t, err)
	_, err = u.UploadImage(make([]byte, 16), 2, 2, vk.FormatD32Sfloat)
	assert.Error(t, err)
	_, err = u.UploadImage(nil, 0, 0, vk.FormatR8Unorm)
	assert.Error(t, err)
	assert.Empty(t, dev.live)
}

func TestUploadImageCreateFailure(t *testing.T) {
	dev := newFakeTransfer()
	dev.failImage = true
	_, err := NewUploader(dev).UploadImage(make([]byte, 16), 2, 2, vk.FormatR8g8b8a8Unorm)
	assert.Error(t, err)
	assert.Empty(t, dev.live, "staging buffer released")
	assert.Empty(t, dev.submits)
}

package vkframe

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestLayoutTransition(t *testing.T) {
	cases := []struct {
		name     string
		old, new vk.ImageLayout
		want     ImageTransition
	}{
		{
			name: "undefined to transfer dst",
			old:  vk.ImageLayoutUndefined,
			new:  vk.ImageLayoutTransferDstOptimal,
			want: ImageTransition{
				OldLayout: vk.ImageLayoutUndefined,
				NewLayout: vk.ImageLayoutTransferDstOptimal,
				SrcAccess: 0,
				DstAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
				SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
				DstStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
				Aspect:    vk.ImageAspectFlags(vk.ImageAspectColorBit),
			},
		},
		{
			name: "transfer dst to shader read",
			old:  vk.ImageLayoutTransferDstOptimal,
			new:  vk.ImageLayoutShaderReadOnlyOptimal,
			want: ImageTransition{
				OldLayout: vk.ImageLayoutTransferDstOptimal,
				NewLayout: vk.ImageLayoutShaderReadOnlyOptimal,
				SrcAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
				DstAccess: vk.AccessFlags(vk.AccessShaderReadBit),
				SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
				DstStage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
				Aspect:    vk.ImageAspectFlags(vk.ImageAspectColorBit),
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := LayoutTransition(vk.FormatR8g8b8a8Unorm, c.old, c.new)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestLayoutTransitionUnsupported(t *testing.T) {
	pairs := [][2]vk.ImageLayout{
		{vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageLayoutTransferDstOptimal},
		{vk.ImageLayoutUndefined, vk.ImageLayoutShaderReadOnlyOptimal},
		{vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferDstOptimal},
		{vk.ImageLayoutUndefined, vk.ImageLayoutPresentSrc},
	}
	for _, p := range pairs {
		_, err := LayoutTransition(vk.FormatR8g8b8a8Unorm, p[0], p[1])
		assert.True(t, errors.Is(err, ErrUnsupportedTransition), "%d -> %d", p[0], p[1])
	}
}

func TestLayoutTransitionDepthAspect(t *testing.T) {
	got, err := LayoutTransition(vk.FormatD32Sfloat, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	require.NoError(t, err)
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), got.Aspect)

	got, err = LayoutTransition(vk.FormatD24UnormS8Uint, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	require.NoError(t, err)
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), got.Aspect)
}

func TestImageMemoryBarrier(t *testing.T) {
	tr, err := LayoutTransition(vk.FormatR8g8b8a8Unorm, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	require.NoError(t, err)
	b := tr.VKImageMemoryBarrier(nil)
	assert.Equal(t, tr.OldLayout, b.OldLayout)
	assert.Equal(t, tr.NewLayout, b.NewLayout)
	assert.Equal(t, tr.SrcAccess, b.SrcAccessMask)
	assert.Equal(t, tr.DstAccess, b.DstAccessMask)
	assert.Equal(t, uint32(vk.QueueFamilyIgnored), b.SrcQueueFamilyIndex)
	assert.Equal(t, uint32(1), b.SubresourceRange.LevelCount)
	assert.Equal(t, uint32(1), b.SubresourceRange.LayerCount)
}

package vkframe

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Commands is the set of commands recorded by the frame recorder, the
// uploader and the overlay. *CommandBuffer implements it over vk.Cmd*.
type Commands interface {
	BeginRenderPass(pass vk.RenderPass, framebuffer vk.Framebuffer, extent vk.Extent2D, clears []vk.ClearValue)
	NextSubpass()
	EndRenderPass()

	BindPipeline(p *Pipeline)
	BindVertexBuffer(buffer *BoundBuffer, offset uint64)
	BindIndexBuffer(buffer *BoundBuffer, offset uint64, indexType vk.IndexType)
	BindDescriptorSets(layout vk.PipelineLayout, firstSet int, sets ...*DescriptorSet)
	PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte)
	SetViewport(extent vk.Extent2D)
	SetScissor(rect vk.Rect2D)

	Draw(vertices, instances uint32)
	DrawIndexed(indices, firstIndex uint32, vertexOffset int32)

	CopyBuffer(src, dst *BoundBuffer, size uint64)
	CopyBufferToImage(src *BoundBuffer, dst *BoundImage)
	Barrier(t ImageTransition, image *BoundImage)
}

// CommandRecorder is a resettable command buffer.
type CommandRecorder interface {
	Commands
	Reset() error
	Begin() error
	End() error
}

// ImageTransition is one image layout change with the stage and access
// masks that order it against the surrounding work.
type ImageTransition struct {
	OldLayout vk.ImageLayout
	NewLayout vk.ImageLayout
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
	SrcStage  vk.PipelineStageFlags
	DstStage  vk.PipelineStageFlags
	Aspect    vk.ImageAspectFlags
}

// LayoutTransition returns the barrier for an upload transition. Only the
// two transitions of the staged image upload are known.
func LayoutTransition(format vk.Format, oldLayout, newLayout vk.ImageLayout) (ImageTransition, error) {
	t := ImageTransition{
		OldLayout: oldLayout,
		NewLayout: newLayout,
		Aspect:    aspectFor(format),
	}
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		t.SrcAccess = 0
		t.DstAccess = vk.AccessFlags(vk.AccessTransferWriteBit)
		t.SrcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		t.DstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		t.SrcAccess = vk.AccessFlags(vk.AccessTransferWriteBit)
		t.DstAccess = vk.AccessFlags(vk.AccessShaderReadBit)
		t.SrcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		t.DstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	default:
		return ImageTransition{}, errors.Wrapf(ErrUnsupportedTransition, "%d -> %d", oldLayout, newLayout)
	}
	return t, nil
}

// VKImageMemoryBarrier builds the barrier for image covering mip 0, layer 0.
func (t ImageTransition) VKImageMemoryBarrier(image vk.Image) vk.ImageMemoryBarrier {
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       t.SrcAccess,
		DstAccessMask:       t.DstAccess,
		OldLayout:           t.OldLayout,
		NewLayout:           t.NewLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     t.Aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
}

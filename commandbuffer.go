package vkframe

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// CommandBuffer describes a sequence of commands that will be executed
// upon being sent to a device queue. It implements CommandRecorder; commands
// it does not wrap can be recorded through VK().
type CommandBuffer struct {
	VKCommandBuffer vk.CommandBuffer
	oneTime         bool
}

// Reset this command buffer and release the resources it holds.
func (c *CommandBuffer) Reset() error {
	return vkError(vk.ResetCommandBuffer(c.VKCommandBuffer, vk.CommandBufferResetFlags(vk.CommandBufferResetReleaseResourcesBit)), "reset command buffer")
}

// VK is a utility function for accessing the native vulkan command buffer
func (c *CommandBuffer) VK() vk.CommandBuffer {
	return c.VKCommandBuffer
}

// Begin capturing work for this command buffer. Buffers allocated with
// AllocateOneTime are flagged for a single submission.
func (c *CommandBuffer) Begin() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if c.oneTime {
		beginInfo.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return vkError(vk.BeginCommandBuffer(c.VKCommandBuffer, &beginInfo), "begin command buffer")
}

// End describing work for this command buffer
func (c *CommandBuffer) End() error {
	return vkError(vk.EndCommandBuffer(c.VKCommandBuffer), "end command buffer")
}

func (c *CommandBuffer) BeginRenderPass(pass vk.RenderPass, framebuffer vk.Framebuffer, extent vk.Extent2D, clears []vk.ClearValue) {
	vk.CmdBeginRenderPass(c.VKCommandBuffer, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}, vk.SubpassContentsInline)
}

func (c *CommandBuffer) NextSubpass() {
	vk.CmdNextSubpass(c.VKCommandBuffer, vk.SubpassContentsInline)
}

func (c *CommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.VKCommandBuffer)
}

func (c *CommandBuffer) BindPipeline(p *Pipeline) {
	vk.CmdBindPipeline(c.VKCommandBuffer, vk.PipelineBindPointGraphics, p.VKPipeline)
}

func (c *CommandBuffer) BindVertexBuffer(buffer *BoundBuffer, offset uint64) {
	vk.CmdBindVertexBuffers(c.VKCommandBuffer, 0, 1, []vk.Buffer{buffer.VKBuffer}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (c *CommandBuffer) BindIndexBuffer(buffer *BoundBuffer, offset uint64, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(c.VKCommandBuffer, buffer.VKBuffer, vk.DeviceSize(offset), indexType)
}

func (c *CommandBuffer) BindDescriptorSets(layout vk.PipelineLayout, firstSet int, descriptorSets ...*DescriptorSet) {
	sets := make([]vk.DescriptorSet, len(descriptorSets))
	for i := range descriptorSets {
		sets[i] = descriptorSets[i].VKDescriptorSet
	}
	vk.CmdBindDescriptorSets(c.VKCommandBuffer, vk.PipelineBindPointGraphics,
		layout, uint32(firstSet), uint32(len(sets)), sets, 0, nil)
}

func (c *CommandBuffer) PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(c.VKCommandBuffer, layout, stages, offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *CommandBuffer) SetViewport(extent vk.Extent2D) {
	vk.CmdSetViewport(c.VKCommandBuffer, 0, 1, []vk.Viewport{{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
}

func (c *CommandBuffer) SetScissor(rect vk.Rect2D) {
	vk.CmdSetScissor(c.VKCommandBuffer, 0, 1, []vk.Rect2D{rect})
}

func (c *CommandBuffer) Draw(vertices, instances uint32) {
	vk.CmdDraw(c.VKCommandBuffer, vertices, instances, 0, 0)
}

func (c *CommandBuffer) DrawIndexed(indices, firstIndex uint32, vertexOffset int32) {
	vk.CmdDrawIndexed(c.VKCommandBuffer, indices, 1, firstIndex, vertexOffset, 0)
}

func (c *CommandBuffer) CopyBuffer(src, dst *BoundBuffer, size uint64) {
	vk.CmdCopyBuffer(c.VKCommandBuffer, src.VKBuffer, dst.VKBuffer, 1, []vk.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(size),
	}})
}

func (c *CommandBuffer) CopyBufferToImage(src *BoundBuffer, dst *BoundImage) {
	extent := dst.Extent
	vk.CmdCopyBufferToImage(c.VKCommandBuffer, src.VKBuffer, dst.VKImage, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
	}})
}

func (c *CommandBuffer) Barrier(t ImageTransition, image *BoundImage) {
	Logger().Debug("image barrier", "old", t.OldLayout, "new", t.NewLayout, "src_stage", t.SrcStage, "dst_stage", t.DstStage)
	vk.CmdPipelineBarrier(c.VKCommandBuffer, t.SrcStage, t.DstStage, 0, 0, nil, 0, nil, 1,
		[]vk.ImageMemoryBarrier{t.VKImageMemoryBarrier(image.VKImage)})
}

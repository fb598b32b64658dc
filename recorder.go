package vkframe

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// FullscreenTriangleVertices is the vertex count of the composition draw.
// The vertex shader derives the positions from gl_VertexIndex.
const FullscreenTriangleVertices = 3

// FrameTarget is what one swapchain image contributes to recording.
type FrameTarget struct {
	ImageIndex  uint32
	RenderPass  vk.RenderPass
	Framebuffer vk.Framebuffer
	Extent      vk.Extent2D
	Clears      []vk.ClearValue
	FrameSet    *DescriptorSet
	InputSet    *DescriptorSet
}

// OverlayFunc records extra draws in the last subpass, after composition
// and before the render pass ends.
type OverlayFunc func(cmd Commands, target *FrameTarget) error

// Recorder re-records a frame's command buffer from scratch: geometry
// subpass over every drawable, then the fullscreen composition.
type Recorder struct {
	Geometry    *Pipeline
	Composition *Pipeline
	Overlay     OverlayFunc
	// PushLimit is the device's maxPushConstantsSize.
	PushLimit uint32
}

// Record resets cmd and records target. Drawables are validated before
// anything is recorded, so a bad drawable leaves cmd untouched.
func (r *Recorder) Record(cmd CommandRecorder, target *FrameTarget, drawables []Drawable) error {
	for i, d := range drawables {
		if err := validateDrawable(i, d, r.PushLimit); err != nil {
			return err
		}
	}
	if target.FrameSet == nil || target.InputSet == nil {
		return errors.Errorf("frame target %d has no descriptor sets", target.ImageIndex)
	}

	if err := cmd.Reset(); err != nil {
		return err
	}
	if err := cmd.Begin(); err != nil {
		return err
	}

	cmd.BeginRenderPass(target.RenderPass, target.Framebuffer, target.Extent, target.Clears)

	geometry := r.Geometry.Layout.VKPipelineLayout
	cmd.BindPipeline(r.Geometry)
	for _, d := range drawables {
		mesh := d.DrawMesh()
		cmd.PushConstants(geometry, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, d.PushConstants())
		cmd.BindVertexBuffer(mesh.Vertices, 0)
		cmd.BindIndexBuffer(mesh.Indices, 0, mesh.IndexType)
		cmd.BindDescriptorSets(geometry, FrameSetIndex, target.FrameSet, d.TextureSet())
		cmd.DrawIndexed(mesh.IndexCount, 0, 0)
	}

	cmd.NextSubpass()

	cmd.BindPipeline(r.Composition)
	cmd.BindDescriptorSets(r.Composition.Layout.VKPipelineLayout, InputSetIndex, target.InputSet)
	cmd.Draw(FullscreenTriangleVertices, 1)

	if r.Overlay != nil {
		if err := r.Overlay(cmd, target); err != nil {
			cmd.EndRenderPass()
			if endErr := cmd.End(); endErr != nil {
				return errors.Wrapf(err, "overlay (end command buffer: %v)", endErr)
			}
			return errors.Wrap(err, "overlay")
		}
	}

	cmd.EndRenderPass()
	return cmd.End()
}

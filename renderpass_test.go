package vkframe

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestDeferredPassGraphDescribe(t *testing.T) {
	g := DeferredPassGraph(vk.FormatB8g8r8a8Unorm, vk.FormatD32Sfloat)
	desc, err := g.Describe()
	require.NoError(t, err)

	require.Len(t, desc.Attachments, 4)
	assert.Equal(t, vk.ImageLayoutPresentSrc, desc.Attachments[0].FinalLayout)
	assert.Equal(t, vk.AttachmentStoreOpStore, desc.Attachments[0].StoreOp)
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, desc.Attachments[1].FinalLayout)
	assert.Equal(t, vk.ImageLayoutDepthStencilAttachmentOptimal, desc.Attachments[3].FinalLayout)
	for _, a := range desc.Attachments {
		assert.Equal(t, vk.ImageLayoutUndefined, a.InitialLayout)
		assert.Equal(t, vk.AttachmentLoadOpClear, a.LoadOp)
	}

	require.Len(t, desc.Subpasses, 2)
	geometry, composition := desc.Subpasses[0], desc.Subpasses[1]
	assert.EqualValues(t, 2, geometry.ColorAttachmentCount)
	require.NotNil(t, geometry.PDepthStencilAttachment)
	assert.EqualValues(t, 3, geometry.PDepthStencilAttachment.Attachment)
	assert.EqualValues(t, 0, geometry.InputAttachmentCount)

	assert.EqualValues(t, 1, composition.ColorAttachmentCount)
	assert.EqualValues(t, 0, composition.PColorAttachments[0].Attachment)
	require.EqualValues(t, 2, composition.InputAttachmentCount)
	assert.EqualValues(t, 1, composition.PInputAttachments[0].Attachment)
	assert.EqualValues(t, 2, composition.PInputAttachments[1].Attachment)
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, composition.PInputAttachments[0].Layout)
	assert.Nil(t, composition.PDepthStencilAttachment)

	require.Len(t, desc.Dependencies, 4)

	first := desc.Dependencies[0]
	assert.Equal(t, uint32(vk.SubpassExternal), first.SrcSubpass)
	assert.EqualValues(t, 0, first.DstSubpass)
	assert.NotZero(t, first.DstStageMask&vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit))
	assert.NotZero(t, first.DstAccessMask&vk.AccessFlags(vk.AccessColorAttachmentWriteBit))
	assert.NotZero(t, first.SrcAccessMask&vk.AccessFlags(vk.AccessMemoryReadBit))

	present := desc.Dependencies[1]
	assert.Equal(t, uint32(vk.SubpassExternal), present.SrcSubpass)
	assert.EqualValues(t, 1, present.DstSubpass)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), present.SrcStageMask)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), present.DstStageMask)
	assert.NotZero(t, present.DstAccessMask&vk.AccessFlags(vk.AccessColorAttachmentWriteBit))

	internal := desc.Dependencies[2]
	assert.EqualValues(t, 0, internal.SrcSubpass)
	assert.EqualValues(t, 1, internal.DstSubpass)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), internal.SrcStageMask)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), internal.DstStageMask)
	assert.Equal(t, vk.AccessFlags(vk.AccessColorAttachmentWriteBit), internal.SrcAccessMask)
	assert.Equal(t, vk.AccessFlags(vk.AccessInputAttachmentReadBit), internal.DstAccessMask)

	last := desc.Dependencies[3]
	assert.EqualValues(t, 1, last.SrcSubpass)
	assert.Equal(t, uint32(vk.SubpassExternal), last.DstSubpass)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), last.SrcStageMask)
	assert.Equal(t, vk.AccessFlags(vk.AccessMemoryReadBit), last.DstAccessMask)

	info := desc.VKRenderPassCreateInfo()
	assert.EqualValues(t, 4, info.AttachmentCount)
	assert.EqualValues(t, 2, info.SubpassCount)
	assert.EqualValues(t, 4, info.DependencyCount)
}

func TestEveryAttachmentFirstUserWaitsOnExternal(t *testing.T) {
	graphs := map[string]*PassGraph{
		"deferred": DeferredPassGraph(vk.FormatB8g8r8a8Unorm, vk.FormatD32Sfloat),
		"late depth": NewPassGraph().
			AddAttachment("color", vk.FormatB8g8r8a8Unorm, AttachmentPresent).
			AddAttachment("gbuf", vk.FormatR8g8b8a8Unorm, AttachmentColor).
			AddAttachment("depth", vk.FormatD32Sfloat, AttachmentDepth).
			AddSubpass(SubpassSpec{Name: "gbuffer", Colors: []string{"gbuf"}}).
			AddSubpass(SubpassSpec{Name: "light", Colors: []string{"color"}, Inputs: []string{"gbuf"}, Depth: "depth"}),
	}
	for name, g := range graphs {
		t.Run(name, func(t *testing.T) {
			desc, err := g.Describe()
			require.NoError(t, err)

			external := make(map[uint32]vk.SubpassDependency)
			for _, dep := range desc.Dependencies {
				if dep.SrcSubpass == vk.SubpassExternal {
					external[dep.DstSubpass] = dep
				}
			}
			for _, a := range g.Attachments {
				user := g.firstUser(a.Name)
				require.GreaterOrEqual(t, user, 0, a.Name)
				dep, ok := external[uint32(user)]
				require.True(t, ok, "%s first used by subpass %d", a.Name, user)
				// bottom of pipe in the source scope covers every stage
				waits := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageBottomOfPipeBit)
				assert.NotZero(t, dep.SrcStageMask&waits, a.Name)
				if a.Kind == AttachmentDepth {
					assert.NotZero(t, dep.DstStageMask&vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit), a.Name)
				}
			}
		})
	}
}

func TestSingleSubpassGraphHasBothBoundaryDependencies(t *testing.T) {
	g := NewPassGraph().
		AddAttachment("color", vk.FormatB8g8r8a8Unorm, AttachmentPresent).
		AddSubpass(SubpassSpec{Name: "main", Colors: []string{"color"}})

	desc, err := g.Describe()
	require.NoError(t, err)
	require.Len(t, desc.Dependencies, 2)
	assert.Equal(t, uint32(vk.SubpassExternal), desc.Dependencies[0].SrcSubpass)
	assert.Equal(t, uint32(vk.SubpassExternal), desc.Dependencies[1].DstSubpass)
	assert.Zero(t, desc.Dependencies[0].DstStageMask&vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit))
}

func TestPassGraphValidation(t *testing.T) {
	cases := map[string]*PassGraph{
		"no subpasses": NewPassGraph().
			AddAttachment("color", vk.FormatB8g8r8a8Unorm, AttachmentPresent),
		"no present attachment": NewPassGraph().
			AddAttachment("gbuf", vk.FormatR8g8b8a8Unorm, AttachmentColor).
			AddSubpass(SubpassSpec{Name: "main", Colors: []string{"gbuf"}}),
		"duplicate attachment": NewPassGraph().
			AddAttachment("color", vk.FormatB8g8r8a8Unorm, AttachmentPresent).
			AddAttachment("color", vk.FormatR8g8b8a8Unorm, AttachmentColor).
			AddSubpass(SubpassSpec{Name: "main", Colors: []string{"color"}}),
		"input before producer": NewPassGraph().
			AddAttachment("color", vk.FormatB8g8r8a8Unorm, AttachmentPresent).
			AddAttachment("gbuf", vk.FormatR8g8b8a8Unorm, AttachmentColor).
			AddSubpass(SubpassSpec{Name: "light", Colors: []string{"color"}, Inputs: []string{"gbuf"}}),
		"present not written last": NewPassGraph().
			AddAttachment("color", vk.FormatB8g8r8a8Unorm, AttachmentPresent).
			AddAttachment("gbuf", vk.FormatR8g8b8a8Unorm, AttachmentColor).
			AddSubpass(SubpassSpec{Name: "a", Colors: []string{"color"}}).
			AddSubpass(SubpassSpec{Name: "b", Colors: []string{"gbuf"}}),
		"unknown depth": NewPassGraph().
			AddAttachment("color", vk.FormatB8g8r8a8Unorm, AttachmentPresent).
			AddSubpass(SubpassSpec{Name: "main", Colors: []string{"color"}, Depth: "depth"}),
		"depth written as color": NewPassGraph().
			AddAttachment("color", vk.FormatB8g8r8a8Unorm, AttachmentPresent).
			AddAttachment("depth", vk.FormatD32Sfloat, AttachmentDepth).
			AddSubpass(SubpassSpec{Name: "main", Colors: []string{"color", "depth"}}),
	}
	for name, g := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := g.Describe()
			assert.True(t, errors.Is(err, ErrInvalidPassGraph), "got %v", err)
		})
	}
}

func TestPassGraphLookups(t *testing.T) {
	g := DeferredPassGraph(vk.FormatB8g8r8a8Unorm, vk.FormatD32Sfloat)

	assert.Equal(t, 1, g.SubpassIndex(CompositionSubpass))
	assert.Equal(t, -1, g.SubpassIndex("lighting"))
	assert.Equal(t, 3, g.AttachmentIndex(DepthAttachment))
	assert.Equal(t, 2, g.ColorAttachmentCount(0))
	assert.Equal(t, 1, g.ColorAttachmentCount(1))
	assert.True(t, g.ReadAsInput(NormalAttachment))
	assert.False(t, g.ReadAsInput(DepthAttachment))
	assert.Equal(t, []string{AlbedoAttachment, NormalAttachment}, g.InputAttachments(1))
}

func TestClearValues(t *testing.T) {
	g := DeferredPassGraph(vk.FormatB8g8r8a8Unorm, vk.FormatD32Sfloat)
	background := []float32{0.1, 0.2, 0.3, 1}

	values := g.ClearValues(background)
	require.Len(t, values, 4)

	var wantColor, wantDepth vk.ClearValue
	wantColor.SetColor(background)
	wantDepth.SetDepthStencil(1.0, 0)
	assert.Equal(t, wantColor, values[0])
	assert.Equal(t, wantDepth, values[3])
}

func TestAttachmentUsage(t *testing.T) {
	g := DeferredPassGraph(vk.FormatB8g8r8a8Unorm, vk.FormatD32Sfloat)

	albedo := attachmentUsage(g, g.Attachments[g.AttachmentIndex(AlbedoAttachment)])
	assert.NotZero(t, albedo&vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit))
	assert.NotZero(t, albedo&vk.ImageUsageFlags(vk.ImageUsageInputAttachmentBit))

	depth := attachmentUsage(g, g.Attachments[g.AttachmentIndex(DepthAttachment)])
	assert.NotZero(t, depth&vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit))
	assert.Zero(t, depth&vk.ImageUsageFlags(vk.ImageUsageInputAttachmentBit))

	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), aspectFor(vk.FormatD32Sfloat))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), aspectFor(vk.FormatD24UnormS8Uint))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit), aspectFor(vk.FormatR8g8b8a8Unorm))
}

func TestFramebufferViews(t *testing.T) {
	g := DeferredPassGraph(vk.FormatB8g8r8a8Unorm, vk.FormatD32Sfloat)
	shared := map[string]vk.ImageView{AlbedoAttachment: nil, NormalAttachment: nil, DepthAttachment: nil}

	views, err := framebufferViews(g, nil, shared)
	require.NoError(t, err)
	assert.Len(t, views, len(g.Attachments))

	delete(shared, NormalAttachment)
	_, err = framebufferViews(g, nil, shared)
	assert.True(t, errors.Is(err, ErrResourceNotFound))
}

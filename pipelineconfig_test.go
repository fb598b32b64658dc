package vkframe

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestPipelineConfigDefaults(t *testing.T) {
	cfg := NewPipelineConfig("geometry")

	assert.Equal(t, vk.FrontFaceCounterClockwise, cfg.FrontFace)
	assert.Equal(t, vk.CullModeBackBit, cfg.CullMode)
	assert.True(t, cfg.DepthTestEnable)
	assert.True(t, cfg.DepthWriteEnable)
	assert.Equal(t, vk.CompareOpLess, cfg.DepthCompareOp)
	assert.Equal(t, vk.BlendFactorSrcAlpha, cfg.Blend.SrcColorBlendFactor)
	assert.Equal(t, vk.BlendFactorOneMinusSrcAlpha, cfg.Blend.DstColorBlendFactor)
	assert.Equal(t, vk.BlendOpAdd, cfg.Blend.ColorBlendOp)
}

func TestPipelineConfigCreateInfo(t *testing.T) {
	graph := DeferredPassGraph(vk.FormatB8g8r8a8Unorm, vk.FormatD32Sfloat)
	shader := &ShaderModule{Name: "geometry.vert"}

	geometry := NewPipelineConfig("geometry").
		SetSubpass(0).
		AddShaderStage(shader, vk.ShaderStageVertexBit, "main").
		AddShaderStage(shader, vk.ShaderStageFragmentBit, "main").
		AddVertexDescriptor(VertexData{}).
		AddPushConstantRange(vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, 64)
	require.NoError(t, geometry.resolve(graph))

	extent := vk.Extent2D{Width: 1280, Height: 720}
	info, err := geometry.VKGraphicsPipelineCreateInfo(extent, nil, nil)
	require.NoError(t, err)

	assert.EqualValues(t, 2, info.StageCount)
	assert.EqualValues(t, 0, info.Subpass)
	assert.EqualValues(t, 1, info.PVertexInputState.VertexBindingDescriptionCount)
	assert.EqualValues(t, 3, info.PVertexInputState.VertexAttributeDescriptionCount)
	require.EqualValues(t, 2, info.PColorBlendState.AttachmentCount)
	for _, b := range info.PColorBlendState.PAttachments {
		assert.Equal(t, AlphaBlend(), b)
	}
	assert.Equal(t, vk.Bool32(vk.True), info.PDepthStencilState.DepthWriteEnable)
	assert.Equal(t, vk.CompareOpLess, info.PDepthStencilState.DepthCompareOp)
	assert.Equal(t, vk.CullModeFlags(vk.CullModeBackBit), info.PRasterizationState.CullMode)
	assert.Equal(t, float32(1280), info.PViewportState.PViewports[0].Width)
	assert.Nil(t, info.PDynamicState)

	composition := NewPipelineConfig("composition").
		SetSubpass(1).
		SetDepthWrite(false).
		AddShaderStage(shader, vk.ShaderStageVertexBit, "main").
		AddShaderStage(shader, vk.ShaderStageFragmentBit, "main")
	require.NoError(t, composition.resolve(graph))

	info, err = composition.VKGraphicsPipelineCreateInfo(extent, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.Subpass)
	assert.EqualValues(t, 0, info.PVertexInputState.VertexBindingDescriptionCount, "full screen triangle has no vertex input")
	assert.EqualValues(t, 1, info.PColorBlendState.AttachmentCount)
	assert.Equal(t, vk.Bool32(vk.False), info.PDepthStencilState.DepthWriteEnable)
}

func TestPipelineConfigErrors(t *testing.T) {
	graph := DeferredPassGraph(vk.FormatB8g8r8a8Unorm, vk.FormatD32Sfloat)

	_, err := NewPipelineConfig("empty").VKGraphicsPipelineCreateInfo(vk.Extent2D{Width: 1, Height: 1}, nil, nil)
	assert.Error(t, err)

	assert.Error(t, NewPipelineConfig("far").SetSubpass(2).resolve(graph))

	wrong := NewPipelineConfig("wrong")
	wrong.ColorAttachments = 3
	assert.Error(t, wrong.resolve(graph))
}

func TestCheckPushConstantRanges(t *testing.T) {
	ok := []vk.PushConstantRange{{Offset: 0, Size: 64}, {Offset: 64, Size: 64}}
	assert.NoError(t, checkPushConstantRanges(ok, 128))

	tooBig := []vk.PushConstantRange{{Offset: 64, Size: 128}}
	assert.True(t, errors.Is(checkPushConstantRanges(tooBig, 128), ErrPushConstantsTooLarge))
}

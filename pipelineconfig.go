package vkframe

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// PipelineConfig is a utility object to ease construction of graphics pipelines
type PipelineConfig struct {
	Name                 string
	ShaderStages         []vk.PipelineShaderStageCreateInfo
	DescriptorSetLayouts []*DescriptorSetLayout
	PushConstantRanges   []vk.PushConstantRange

	// Subpass is the index of the subpass the pipeline is used in.
	Subpass uint32

	// ColorAttachments is the number of blend states, one per color output of
	// the subpass. Zero means take it from the render pass.
	ColorAttachments int

	// PrimativeTopology see https://www.khronos.org/registry/vulkan/specs/1.1-extensions/man/html/VkPrimitiveTopology.html
	// defaults to VK_PRIMITIVE_TOPOLOGY_TRIANGLE_LIST
	PrimitiveTopology      vk.PrimitiveTopology
	PrimitiveRestartEnable vk.Bool32

	// PolygonMode defaults to VK_POLYGON_MODE_FILL
	PolygonMode vk.PolygonMode
	LineWidth   float32

	// CullMode defaults to vk.CullModeBackBit
	CullMode vk.CullModeFlagBits

	// FrontFace defaults to vk.FrontFaceCounterClockwise
	FrontFace vk.FrontFace

	// DynamicState specifies which part of the pipeline might be modified by the command buffer see
	// https://www.khronos.org/registry/vulkan/specs/1.1/html/vkspec.html#VkDynamicState
	// defaults to none
	DynamicState []vk.DynamicState

	// Blend is replicated for every color attachment of the subpass.
	Blend vk.PipelineColorBlendAttachmentState

	DepthTestEnable  bool
	DepthWriteEnable bool
	DepthCompareOp   vk.CompareOp

	VertexInputBindingDescriptions   []vk.VertexInputBindingDescription
	VertexInputAttributeDescriptions []vk.VertexInputAttributeDescription

	Viewport *vk.Viewport
}

var allColorComponents = vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit)

// AlphaBlend is out = srcAlpha*new + (1-srcAlpha)*old.
func AlphaBlend() vk.PipelineColorBlendAttachmentState {
	return vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      allColorComponents,
	}
}

// NewPipelineConfig returns a config with the defaults every pipeline of the
// renderer shares: counter-clockwise front faces, back face culling, alpha
// blending and a LESS depth test with depth writes.
func NewPipelineConfig(name string) *PipelineConfig {
	return &PipelineConfig{
		Name:                   name,
		PrimitiveTopology:      vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
		PolygonMode:            vk.PolygonModeFill,
		LineWidth:              1.0,
		CullMode:               vk.CullModeBackBit,
		FrontFace:              vk.FrontFaceCounterClockwise,
		Blend:                  AlphaBlend(),
		DepthTestEnable:        true,
		DepthWriteEnable:       true,
		DepthCompareOp:         vk.CompareOpLess,
	}
}

func (g *PipelineConfig) SetSubpass(subpass int) *PipelineConfig {
	g.Subpass = uint32(subpass)
	return g
}

// SetCullMode sets the cull mode
func (g *PipelineConfig) SetCullMode(mode vk.CullModeFlagBits) *PipelineConfig {
	g.CullMode = mode
	return g
}

// SetDynamicState specifies which part of the pipeline may be changed with command buffer commands
func (g *PipelineConfig) SetDynamicState(states ...vk.DynamicState) *PipelineConfig {
	g.DynamicState = states
	return g
}

func (g *PipelineConfig) SetDepthTest(enabled bool) *PipelineConfig {
	g.DepthTestEnable = enabled
	return g
}

func (g *PipelineConfig) SetDepthWrite(enabled bool) *PipelineConfig {
	g.DepthWriteEnable = enabled
	return g
}

func (g *PipelineConfig) SetBlend(state vk.PipelineColorBlendAttachmentState) *PipelineConfig {
	g.Blend = state
	return g
}

// AddShaderStage adds a stage using the module's entry point.
func (g *PipelineConfig) AddShaderStage(module *ShaderModule, stage vk.ShaderStageFlagBits, entryPoint string) *PipelineConfig {
	g.ShaderStages = append(g.ShaderStages, module.VKPipelineShaderStageCreateInfo(stage, entryPoint))
	return g
}

// AddVertexDescriptor adds vertex descriptors based off the specified interface
func (g *PipelineConfig) AddVertexDescriptor(v VertexDescriptor) *PipelineConfig {
	g.VertexInputBindingDescriptions = append(g.VertexInputBindingDescriptions, v.BindingDescription())
	g.VertexInputAttributeDescriptions = append(g.VertexInputAttributeDescriptions, v.AttributeDescriptions()...)
	return g
}

// AddDescriptorSetLayout appends a set layout; set numbers follow call order.
func (g *PipelineConfig) AddDescriptorSetLayout(d *DescriptorSetLayout) *PipelineConfig {
	g.DescriptorSetLayouts = append(g.DescriptorSetLayouts, d)
	return g
}

func (g *PipelineConfig) AddPushConstantRange(stages vk.ShaderStageFlags, offset, size uint32) *PipelineConfig {
	g.PushConstantRanges = append(g.PushConstantRanges, vk.PushConstantRange{
		StageFlags: stages,
		Offset:     offset,
		Size:       size,
	})
	return g
}

// checkPushConstantRanges rejects ranges that end past limit bytes.
func checkPushConstantRanges(ranges []vk.PushConstantRange, limit uint32) error {
	for _, r := range ranges {
		if r.Offset+r.Size > limit {
			return errors.Wrapf(ErrPushConstantsTooLarge, "range [%d,%d) exceeds %d bytes", r.Offset, r.Offset+r.Size, limit)
		}
	}
	return nil
}

// resolve checks the config against the render pass it will be used in and
// fills in the number of color attachments.
func (g *PipelineConfig) resolve(graph *PassGraph) error {
	if int(g.Subpass) >= len(graph.Subpasses) {
		return errors.Errorf("pipeline %q: subpass %d out of range, pass has %d", g.Name, g.Subpass, len(graph.Subpasses))
	}
	want := graph.ColorAttachmentCount(int(g.Subpass))
	if g.ColorAttachments == 0 {
		g.ColorAttachments = want
	}
	if g.ColorAttachments != want {
		return errors.Errorf("pipeline %q: %d blend states for %d color attachments", g.Name, g.ColorAttachments, want)
	}
	return nil
}

// VKGraphicsPipelineCreateInfo uses the provided config information to create a vk.GraphicsPipelineCreateInfo structure
func (g *PipelineConfig) VKGraphicsPipelineCreateInfo(extent vk.Extent2D, renderPass vk.RenderPass, layout vk.PipelineLayout) (vk.GraphicsPipelineCreateInfo, error) {
	if len(g.ShaderStages) == 0 {
		return vk.GraphicsPipelineCreateInfo{}, errors.Errorf("pipeline %q has no shader stages", g.Name)
	}

	vertexInputState := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(g.VertexInputBindingDescriptions)),
		PVertexBindingDescriptions:      g.VertexInputBindingDescriptions,
		VertexAttributeDescriptionCount: uint32(len(g.VertexInputAttributeDescriptions)),
		PVertexAttributeDescriptions:    g.VertexInputAttributeDescriptions,
	}

	inputAssemblyState := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               g.PrimitiveTopology,
		PrimitiveRestartEnable: g.PrimitiveRestartEnable,
	}

	viewport := vk.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	if g.Viewport != nil {
		viewport = *g.Viewport
	}
	scissor := vk.Rect2D{Extent: extent}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports:    []vk.Viewport{viewport},
		ScissorCount:  1,
		PScissors:     []vk.Rect2D{scissor},
	}

	rasterState := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             g.PolygonMode,
		LineWidth:               g.LineWidth,
		CullMode:                vk.CullModeFlags(g.CullMode),
		FrontFace:               g.FrontFace,
		DepthBiasEnable:         vk.False,
	}

	multisampleState := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: vk.SampleCount1Bit,
	}

	count := g.ColorAttachments
	if count == 0 {
		count = 1
	}
	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, count)
	for i := range blendAttachments {
		blendAttachments[i] = g.Blend
	}
	colorBlendState := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(g.DepthTestEnable),
		DepthWriteEnable:      vkBool(g.DepthWriteEnable),
		DepthCompareOp:        g.DepthCompareOp,
		DepthBoundsTestEnable: vk.False,
		MinDepthBounds:        0.0,
		MaxDepthBounds:        1.0,
		StencilTestEnable:     vk.False,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(g.ShaderStages)),
		PStages:             g.ShaderStages,
		PVertexInputState:   &vertexInputState,
		PInputAssemblyState: &inputAssemblyState,
		PDepthStencilState:  &depthStencil,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterState,
		PMultisampleState:   &multisampleState,
		PColorBlendState:    &colorBlendState,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             g.Subpass,
	}
	if len(g.DynamicState) > 0 {
		info.PDynamicState = &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(g.DynamicState)),
			PDynamicStates:    g.DynamicState,
		}
	}
	return info, nil
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

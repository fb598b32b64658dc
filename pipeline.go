package vkframe

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Pipeline is a baked graphics pipeline and the layout it owns.
type Pipeline struct {
	Device     *Device
	Name       string
	VKPipeline vk.Pipeline
	Layout     *PipelineLayout
	Subpass    uint32
}

func (p *Pipeline) Destroy() {
	vk.DestroyPipeline(p.Device.VKDevice, p.VKPipeline, nil)
	p.Layout.Destroy()
}

// PipelineCache survives swapchain recreation so rebuilt pipelines are cheap.
type PipelineCache struct {
	Device          *Device
	VKPipelineCache vk.PipelineCache
}

func (d *Device) CreatePipelineCache() (*PipelineCache, error) {
	info := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	var pipelineCache vk.PipelineCache
	if err := vkError(vk.CreatePipelineCache(d.VKDevice, &info, nil, &pipelineCache), "create pipeline cache"); err != nil {
		return nil, err
	}
	return &PipelineCache{Device: d, VKPipelineCache: pipelineCache}, nil
}

func (c *PipelineCache) Destroy() {
	vk.DestroyPipelineCache(c.Device.VKDevice, c.VKPipelineCache, nil)
}

// BuildPipelines creates a layout for every config and then all pipelines in
// a single driver call. Pipelines are returned in config order. On failure
// nothing is left behind.
func (d *Device) BuildPipelines(cache *PipelineCache, pass *RenderPass, extent vk.Extent2D, configs ...*PipelineConfig) ([]*Pipeline, error) {
	limit := d.PhysicalDevice.Limits().MaxPushConstantsSize
	cleanup := NewCleanup()

	layouts := make([]*PipelineLayout, len(configs))
	infos := make([]vk.GraphicsPipelineCreateInfo, len(configs))
	for i, cfg := range configs {
		if err := cfg.resolve(pass.Graph); err != nil {
			cleanup.Release()
			return nil, err
		}
		if err := checkPushConstantRanges(cfg.PushConstantRanges, limit); err != nil {
			cleanup.Release()
			return nil, errors.Wrapf(err, "pipeline %q", cfg.Name)
		}
		layout, err := d.CreatePipelineLayout(cfg)
		if err != nil {
			cleanup.Release()
			return nil, err
		}
		layouts[i] = layout
		cleanup.Push(layout.Destroy)

		info, err := cfg.VKGraphicsPipelineCreateInfo(extent, pass.VKRenderPass, layout.VKPipelineLayout)
		if err != nil {
			cleanup.Release()
			return nil, err
		}
		infos[i] = info
	}

	var vkCache vk.PipelineCache
	if cache != nil {
		vkCache = cache.VKPipelineCache
	}
	handles := make([]vk.Pipeline, len(configs))
	res := vk.CreateGraphicsPipelines(d.VKDevice, vkCache, uint32(len(infos)), infos, nil, handles)
	if err := vkError(res, "create graphics pipelines"); err != nil {
		cleanup.Release()
		return nil, err
	}

	pipelines := make([]*Pipeline, len(configs))
	for i, cfg := range configs {
		pipelines[i] = &Pipeline{
			Device:     d,
			Name:       cfg.Name,
			VKPipeline: handles[i],
			Layout:     layouts[i],
			Subpass:    cfg.Subpass,
		}
		Logger().Info("pipeline built", "name", cfg.Name, "subpass", cfg.Subpass, "stages", len(cfg.ShaderStages))
	}
	return pipelines, nil
}

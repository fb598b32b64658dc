package vkframe

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// PipelineLayout is the set layouts and push constant ranges a pipeline
// was built against. Descriptor sets and push constants are recorded
// against it.
type PipelineLayout struct {
	Device           *Device
	VKPipelineLayout vk.PipelineLayout
	PushConstants    []vk.PushConstantRange
}

func (p *PipelineLayout) Destroy() {
	vk.DestroyPipelineLayout(p.Device.VKDevice, p.VKPipelineLayout, nil)
}

// CreatePipelineLayout builds the layout described by cfg.
func (d *Device) CreatePipelineLayout(cfg *PipelineConfig) (*PipelineLayout, error) {
	sets := make([]vk.DescriptorSetLayout, len(cfg.DescriptorSetLayouts))
	for i, dsl := range cfg.DescriptorSetLayouts {
		if dsl == nil {
			return nil, errors.Errorf("pipeline %q: set layout %d is nil", cfg.Name, i)
		}
		sets[i] = dsl.VKDescriptorSetLayout
	}

	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(sets)),
		PSetLayouts:            sets,
		PushConstantRangeCount: uint32(len(cfg.PushConstantRanges)),
		PPushConstantRanges:    cfg.PushConstantRanges,
	}

	var layout vk.PipelineLayout
	if err := vkError(vk.CreatePipelineLayout(d.VKDevice, &info, nil, &layout), "create pipeline layout"); err != nil {
		return nil, errors.Wrapf(err, "pipeline %q", cfg.Name)
	}
	return &PipelineLayout{Device: d, VKPipelineLayout: layout, PushConstants: cfg.PushConstantRanges}, nil
}

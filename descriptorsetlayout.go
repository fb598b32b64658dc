package vkframe

import (
	vk "github.com/vulkan-go/vulkan"
)

// BindingSpec declares one slot of a descriptor set layout.
type BindingSpec struct {
	Binding uint32
	Type    vk.DescriptorType
	Stages  vk.ShaderStageFlags
	Count   uint32
}

// SetLayoutSpec is the contract between a descriptor set and the shaders
// that read it.
type SetLayoutSpec struct {
	Name     string
	Bindings []BindingSpec
}

// VKBindings converts the layout bindings; a zero Count means one descriptor.
func (s SetLayoutSpec) VKBindings() []vk.DescriptorSetLayoutBinding {
	ret := make([]vk.DescriptorSetLayoutBinding, len(s.Bindings))
	for i, b := range s.Bindings {
		count := b.Count
		if count == 0 {
			count = 1
		}
		ret[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.Type,
			DescriptorCount: count,
			StageFlags:      b.Stages,
		}
	}
	return ret
}

// DescriptorCount totals the descriptors of type t in one set.
func (s SetLayoutSpec) DescriptorCount(t vk.DescriptorType) int {
	n := 0
	for _, b := range s.Bindings {
		if b.Type != t {
			continue
		}
		if b.Count == 0 {
			n++
		} else {
			n += int(b.Count)
		}
	}
	return n
}

// DescriptorSetLayout describes the layout of a descriptorset
type DescriptorSetLayout struct {
	Device                *Device
	VKDescriptorSetLayout vk.DescriptorSetLayout
	Spec                  SetLayoutSpec
}

// Destroy destroys this descriptor set layout
func (d *DescriptorSetLayout) Destroy() {
	vk.DestroyDescriptorSetLayout(d.Device.VKDevice, d.VKDescriptorSetLayout, nil)
}

func (d *Device) CreateDescriptorSetLayout(spec SetLayoutSpec) (*DescriptorSetLayout, error) {
	bindings := spec.VKBindings()
	info := &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	var layout vk.DescriptorSetLayout
	if err := vkError(vk.CreateDescriptorSetLayout(d.VKDevice, info, nil, &layout), "create descriptor set layout "+spec.Name); err != nil {
		return nil, err
	}
	return &DescriptorSetLayout{Device: d, VKDescriptorSetLayout: layout, Spec: spec}, nil
}

package vkframe

import (
	"sort"

	vk "github.com/vulkan-go/vulkan"
)

// descriptorWriter flushes descriptor writes; *Device implements it.
type descriptorWriter interface {
	UpdateDescriptorSets(writes []vk.WriteDescriptorSet)
}

// DescriptorSet is a binding of resources to a descriptor, per a specific
// DescriptorSetLayout. Each binding refers to exactly one resource: binding
// the same slot again replaces the earlier write.
type DescriptorSet struct {
	Pool            *DescriptorPool
	VKDescriptorSet vk.DescriptorSet

	writer  descriptorWriter
	pending map[uint32]vk.WriteDescriptorSet
	bound   map[uint32]vk.WriteDescriptorSet
}

func NewDescriptorSet(writer descriptorWriter, set vk.DescriptorSet) *DescriptorSet {
	return &DescriptorSet{
		VKDescriptorSet: set,
		writer:          writer,
		pending:         make(map[uint32]vk.WriteDescriptorSet),
		bound:           make(map[uint32]vk.WriteDescriptorSet),
	}
}

// BindBuffer points binding at [offset, offset+size) of buf.
func (du *DescriptorSet) BindBuffer(binding uint32, dtype vk.DescriptorType, buf *BoundBuffer, offset, size uint64) {
	du.pending[binding] = vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  dtype,
		PBufferInfo:     []vk.DescriptorBufferInfo{buf.DescriptorInfo(offset, size)},
	}
}

// BindImage points binding at an image view, with an optional sampler.
func (du *DescriptorSet) BindImage(binding uint32, dtype vk.DescriptorType, view vk.ImageView, sampler vk.Sampler, layout vk.ImageLayout) {
	du.pending[binding] = vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  dtype,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     sampler,
			ImageView:   view,
			ImageLayout: layout,
		}},
	}
}

// BindCombinedImageSampler adds an image view and sampler to support displaying a texture
func (du *DescriptorSet) BindCombinedImageSampler(binding uint32, view *ImageView, sampler *Sampler) {
	du.BindImage(binding, vk.DescriptorTypeCombinedImageSampler, view.VKImageView, sampler.VKSampler, vk.ImageLayoutShaderReadOnlyOptimal)
}

// BindInputAttachment binds an attachment written by an earlier subpass.
func (du *DescriptorSet) BindInputAttachment(binding uint32, view vk.ImageView) {
	du.BindImage(binding, vk.DescriptorTypeInputAttachment, view, vk.NullSampler, vk.ImageLayoutShaderReadOnlyOptimal)
}

// Write flushes pending bindings in binding order.
func (du *DescriptorSet) Write() {
	if len(du.pending) == 0 {
		return
	}
	keys := make([]int, 0, len(du.pending))
	for b := range du.pending {
		keys = append(keys, int(b))
	}
	sort.Ints(keys)

	writes := make([]vk.WriteDescriptorSet, 0, len(keys))
	for _, k := range keys {
		w := du.pending[uint32(k)]
		w.DstSet = du.VKDescriptorSet
		writes = append(writes, w)
		du.bound[uint32(k)] = w
	}
	du.pending = make(map[uint32]vk.WriteDescriptorSet)
	du.writer.UpdateDescriptorSets(writes)
}

// Bound returns the write last flushed for binding.
func (du *DescriptorSet) Bound(binding uint32) (vk.WriteDescriptorSet, bool) {
	w, ok := du.bound[binding]
	return w, ok
}

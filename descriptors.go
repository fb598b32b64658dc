package vkframe

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Set numbers used by the renderer's pipelines.
const (
	FrameSetIndex   = 0
	TextureSetIndex = 1
	InputSetIndex   = 0
)

// FrameSetLayoutSpec is the per-image camera uniform read by the vertex stage.
func FrameSetLayoutSpec() SetLayoutSpec {
	return SetLayoutSpec{
		Name: "frame",
		Bindings: []BindingSpec{{
			Binding: 0,
			Type:    vk.DescriptorTypeUniformBuffer,
			Stages:  vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		}},
	}
}

// TextureSetLayoutSpec is one combined image sampler for the fragment stage.
func TextureSetLayoutSpec() SetLayoutSpec {
	return SetLayoutSpec{
		Name: "texture",
		Bindings: []BindingSpec{{
			Binding: 0,
			Type:    vk.DescriptorTypeCombinedImageSampler,
			Stages:  vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		}},
	}
}

// InputSetLayoutSpec declares n input attachments at bindings 0..n-1.
func InputSetLayoutSpec(n int) SetLayoutSpec {
	spec := SetLayoutSpec{Name: "input"}
	for i := 0; i < n; i++ {
		spec.Bindings = append(spec.Bindings, BindingSpec{
			Binding: uint32(i),
			Type:    vk.DescriptorTypeInputAttachment,
			Stages:  vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		})
	}
	return spec
}

type PoolCategory int

const (
	FramePool PoolCategory = iota
	TexturePool
	InputPool
)

// PlanPool sizes the pool of one binding category: frame sets scale with
// the swapchain image count, texture sets with the texture budget.
func PlanPool(category PoolCategory, frames, maxTextures, inputs int) PoolPlan {
	var plan PoolPlan
	switch category {
	case FramePool:
		plan.MaxSets = frames
		plan.AddPoolSize(vk.DescriptorTypeUniformBuffer, frames*FrameSetLayoutSpec().DescriptorCount(vk.DescriptorTypeUniformBuffer))
	case TexturePool:
		plan.MaxSets = maxTextures
		plan.AddPoolSize(vk.DescriptorTypeCombinedImageSampler, maxTextures)
	case InputPool:
		plan.MaxSets = frames
		plan.AddPoolSize(vk.DescriptorTypeInputAttachment, frames*inputs)
	}
	return plan
}

// BindFrameSets points frame set i at uniform slice i and flushes.
func BindFrameSets(sets []*DescriptorSet, uniforms *UniformBuffers) error {
	if len(sets) != uniforms.Count() {
		return errors.Errorf("%d frame sets for %d uniform slices", len(sets), uniforms.Count())
	}
	for i, set := range sets {
		slice := uniforms.Slice(i)
		set.BindBuffer(0, vk.DescriptorTypeUniformBuffer, uniforms.Buffer, slice.Offset, uniforms.SliceSize)
		set.Write()
	}
	return nil
}

// BindInputSets points binding j of every set at views[j] and flushes.
func BindInputSets(sets []*DescriptorSet, views []vk.ImageView) {
	for _, set := range sets {
		for j, v := range views {
			set.BindInputAttachment(uint32(j), v)
		}
		set.Write()
	}
}

// DescriptorManager owns the set layouts and pools of the renderer. The
// texture pool lives as long as the manager; frame and input pools are
// rebuilt with the swapchain.
type DescriptorManager struct {
	Device        *Device
	FrameLayout   *DescriptorSetLayout
	TextureLayout *DescriptorSetLayout
	InputLayout   *DescriptorSetLayout

	FrameSets []*DescriptorSet
	InputSets []*DescriptorSet

	maxTextures  int
	textureSets  int
	texturePool  *DescriptorPool
	framePool    *DescriptorPool
	inputPool    *DescriptorPool
	layoutsClean *Cleanup
}

// NewDescriptorManager creates the three set layouts and the texture pool.
func NewDescriptorManager(d *Device, maxTextures, inputs int) (*DescriptorManager, error) {
	m := &DescriptorManager{Device: d, maxTextures: maxTextures, layoutsClean: NewCleanup()}

	var err error
	if m.FrameLayout, err = d.CreateDescriptorSetLayout(FrameSetLayoutSpec()); err != nil {
		return nil, err
	}
	m.layoutsClean.Push(m.FrameLayout.Destroy)

	if m.TextureLayout, err = d.CreateDescriptorSetLayout(TextureSetLayoutSpec()); err != nil {
		m.layoutsClean.Release()
		return nil, err
	}
	m.layoutsClean.Push(m.TextureLayout.Destroy)

	if m.InputLayout, err = d.CreateDescriptorSetLayout(InputSetLayoutSpec(inputs)); err != nil {
		m.layoutsClean.Release()
		return nil, err
	}
	m.layoutsClean.Push(m.InputLayout.Destroy)

	if m.texturePool, err = d.CreateDescriptorPool(PlanPool(TexturePool, 0, maxTextures, 0)); err != nil {
		m.layoutsClean.Release()
		return nil, err
	}
	m.layoutsClean.Push(m.texturePool.Destroy)
	return m, nil
}

// AllocateSwapchainSets creates one frame set and one input set per image
// and binds them to the uniform slices and G-buffer views.
func (m *DescriptorManager) AllocateSwapchainSets(images int, uniforms *UniformBuffers, inputViews []vk.ImageView) error {
	m.ReleaseSwapchainSets()

	var err error
	if m.framePool, err = m.Device.CreateDescriptorPool(PlanPool(FramePool, images, 0, 0)); err != nil {
		return err
	}
	if m.inputPool, err = m.Device.CreateDescriptorPool(PlanPool(InputPool, images, 0, len(inputViews))); err != nil {
		m.ReleaseSwapchainSets()
		return err
	}
	if m.FrameSets, err = m.framePool.Allocate(m.FrameLayout, images); err != nil {
		m.ReleaseSwapchainSets()
		return err
	}
	if m.InputSets, err = m.inputPool.Allocate(m.InputLayout, images); err != nil {
		m.ReleaseSwapchainSets()
		return err
	}
	if err := BindFrameSets(m.FrameSets, uniforms); err != nil {
		m.ReleaseSwapchainSets()
		return err
	}
	BindInputSets(m.InputSets, inputViews)
	return nil
}

// ReleaseSwapchainSets destroys the per-swapchain pools and their sets.
func (m *DescriptorManager) ReleaseSwapchainSets() {
	if m.framePool != nil {
		m.framePool.Destroy()
		m.framePool = nil
	}
	if m.inputPool != nil {
		m.inputPool.Destroy()
		m.inputPool = nil
	}
	m.FrameSets = nil
	m.InputSets = nil
}

// AllocateTextureSet binds a texture into a new set from the texture pool.
func (m *DescriptorManager) AllocateTextureSet(view *ImageView, sampler *Sampler) (*DescriptorSet, error) {
	if m.textureSets >= m.maxTextures {
		return nil, errors.Errorf("texture budget of %d sets exhausted", m.maxTextures)
	}
	sets, err := m.texturePool.Allocate(m.TextureLayout, 1)
	if err != nil {
		return nil, err
	}
	m.textureSets++
	sets[0].BindCombinedImageSampler(0, view, sampler)
	sets[0].Write()
	return sets[0], nil
}

func (m *DescriptorManager) Destroy() {
	m.ReleaseSwapchainSets()
	m.layoutsClean.Release()
}

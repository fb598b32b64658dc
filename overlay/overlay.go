// Package overlay draws a Dear ImGui interface over the composited frame.
package overlay

import (
	"image"
	"unsafe"

	"github.com/celer/vkframe"
	"github.com/inkyblackness/imgui-go"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

const fontTextureName = "overlay-font"

// transformSize is the push constant block: vec2 scale, vec2 translate.
const transformSize = 16

var hostCoherent = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)

// UI is a window or widget tree drawn each frame.
type UI interface {
	DrawUI()
}

// UIFunc adapts a plain function to UI.
type UIFunc func()

func (f UIFunc) DrawUI() { f() }

// Overlay renders ImGui draw lists in the composition subpass. Per-image
// vertex and index buffers grow on demand; an image's buffers are only
// rewritten once its previous submission has completed.
type Overlay struct {
	context *imgui.Context
	io      imgui.IO
	input   *Input

	shaders map[string]*vkframe.ShaderModule
	font    *vkframe.Texture
	fontSet *vkframe.DescriptorSet

	dev      vkframe.BufferCreator
	pipeline *vkframe.Pipeline
	buffers  []*drawBuffers
	stats    func() vkframe.FrameStats

	uis []UI
}

// New creates the ImGui context. Attach an Input to feed it window events.
func New() *Overlay {
	context := imgui.CreateContext(nil)
	o := &Overlay{context: context, io: imgui.CurrentIO()}
	o.AddUI(UIFunc(o.drawStats))
	return o
}

func (o *Overlay) AddUI(ui UI) {
	o.uis = append(o.uis, ui)
}

// IO is the ImGui state the overlay draws with.
func (o *Overlay) IO() imgui.IO {
	return o.io
}

// Prepare creates the font texture on first use and the pipeline for the
// current render pass.
func (o *Overlay) Prepare(env *vkframe.OverlayEnv) error {
	if o.font == nil {
		if err := o.createFont(env); err != nil {
			return err
		}
	}
	if o.shaders == nil {
		shaders, err := env.Device.LoadShaderModules(env.ShaderDir, vkframe.OverlayVertexShader, vkframe.OverlayFragmentShader)
		if err != nil {
			return err
		}
		o.shaders = shaders
	}

	cfg := vkframe.NewPipelineConfig("overlay").
		SetSubpass(env.Subpass).
		AddShaderStage(o.shaders[vkframe.OverlayVertexShader], vk.ShaderStageVertexBit, "main").
		AddShaderStage(o.shaders[vkframe.OverlayFragmentShader], vk.ShaderStageFragmentBit, "main").
		AddVertexDescriptor(drawVertex{}).
		AddDescriptorSetLayout(env.Descriptors.TextureLayout).
		AddPushConstantRange(vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, transformSize).
		SetDynamicState(vk.DynamicStateViewport, vk.DynamicStateScissor).
		SetCullMode(vk.CullModeNone).
		SetDepthTest(false).
		SetDepthWrite(false)

	pipelines, err := env.Device.BuildPipelines(env.Cache, env.Pass, env.Extent, cfg)
	if err != nil {
		return errors.Wrap(err, "overlay pipeline")
	}
	o.pipeline = pipelines[0]
	o.dev = env.Device
	o.buffers = make([]*drawBuffers, env.ImageCount)
	o.stats = env.Stats
	return nil
}

func (o *Overlay) createFont(env *vkframe.OverlayEnv) error {
	data := o.io.Fonts().TextureDataRGBA32()
	img := image.NewRGBA(image.Rect(0, 0, data.Width, data.Height))
	copy(img.Pix, vkframe.ToBytes(data.Pixels, data.Width*data.Height*4))

	font, err := env.Textures.FromImage(fontTextureName, img)
	if err != nil {
		return errors.Wrap(err, "overlay font")
	}
	set, err := env.Descriptors.AllocateTextureSet(font.View, font.Sampler)
	if err != nil {
		return errors.Wrap(err, "overlay font")
	}
	o.font, o.fontSet = font, set
	return nil
}

// Record builds this frame's UI and records it into cmd.
func (o *Overlay) Record(cmd vkframe.Commands, target *vkframe.FrameTarget) error {
	if o.pipeline == nil {
		return errors.New("overlay not prepared")
	}
	if o.input != nil {
		o.input.NewFrame()
	}
	o.io.SetDisplaySize(imgui.Vec2{X: float32(target.Extent.Width), Y: float32(target.Extent.Height)})
	imgui.NewFrame()
	for _, ui := range o.uis {
		ui.DrawUI()
	}
	imgui.Render()

	lists := collectLists(imgui.RenderedDrawData())
	if lists.indexCount() == 0 {
		return nil
	}

	i := int(target.ImageIndex)
	if i >= len(o.buffers) {
		return errors.Wrapf(vkframe.ErrResourceNotFound, "overlay buffers for image %d", i)
	}
	buf, err := o.ensureBuffers(i, lists.vertexBytes(), lists.indexBytes())
	if err != nil {
		return err
	}
	if err := lists.upload(buf); err != nil {
		return err
	}

	layout := o.pipeline.Layout.VKPipelineLayout
	cmd.BindPipeline(o.pipeline)
	cmd.SetViewport(target.Extent)
	cmd.BindDescriptorSets(layout, 0, o.fontSet)
	cmd.PushConstants(layout, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, displayTransform(target.Extent))
	cmd.BindVertexBuffer(buf.vertices, 0)
	cmd.BindIndexBuffer(buf.indices, 0, indexType())
	lists.draw(cmd, target.Extent)
	return nil
}

// ensureBuffers returns image i's buffers with room for the given sizes,
// replacing them when they are too small.
func (o *Overlay) ensureBuffers(i int, vsize, isize uint64) (*drawBuffers, error) {
	b := o.buffers[i]
	if b != nil && b.vertices.Size >= vsize && b.indices.Size >= isize {
		return b, nil
	}
	if b != nil {
		b.destroy()
	}
	b, err := newDrawBuffers(o.dev, grow(vsize), grow(isize))
	if err != nil {
		o.buffers[i] = nil
		return nil, err
	}
	o.buffers[i] = b
	return b, nil
}

// Release frees what depends on the swapchain.
func (o *Overlay) Release() {
	for _, b := range o.buffers {
		if b != nil {
			b.destroy()
		}
	}
	o.buffers = nil
	if o.pipeline != nil {
		o.pipeline.Destroy()
		o.pipeline = nil
	}
}

// Destroy frees the shaders and the ImGui context. The font texture is
// owned by the renderer's texture loader.
func (o *Overlay) Destroy() {
	o.Release()
	vkframe.DestroyShaderModules(o.shaders)
	o.shaders = nil
	if o.context != nil {
		o.context.Destroy()
		o.context = nil
	}
}

func (o *Overlay) drawStats() {
	if o.stats == nil {
		return
	}
	s := o.stats()
	imgui.Begin("Frame")
	imgui.Text(formatStats(s))
	imgui.End()
}

type drawBuffers struct {
	vertices *vkframe.BoundBuffer
	indices  *vkframe.BoundBuffer
}

func newDrawBuffers(dev vkframe.BufferCreator, vsize, isize uint64) (*drawBuffers, error) {
	vb, err := dev.CreateBoundBuffer(vsize, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), hostCoherent)
	if err != nil {
		return nil, errors.Wrap(err, "overlay vertex buffer")
	}
	ib, err := dev.CreateBoundBuffer(isize, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit), hostCoherent)
	if err != nil {
		vb.Destroy()
		return nil, errors.Wrap(err, "overlay index buffer")
	}
	return &drawBuffers{vertices: vb, indices: ib}, nil
}

func (b *drawBuffers) destroy() {
	b.indices.Destroy()
	b.vertices.Destroy()
}

// grow rounds n up to the next power of two, at least 64KiB.
func grow(n uint64) uint64 {
	size := uint64(64 * 1024)
	for size < n {
		size <<= 1
	}
	return size
}

func indexType() vk.IndexType {
	if imgui.IndexBufferLayout() == 4 {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}

// displayTransform maps ImGui pixel coordinates to clip space.
func displayTransform(extent vk.Extent2D) []byte {
	t := [4]float32{
		2 / float32(extent.Width), 2 / float32(extent.Height),
		-1, -1,
	}
	out := make([]byte, transformSize)
	copy(out, vkframe.ToBytes(unsafe.Pointer(&t[0]), transformSize))
	return out
}

// drawVertex describes imgui's vertex layout to the pipeline.
type drawVertex struct{}

func (drawVertex) BindingDescription() vk.VertexInputBindingDescription {
	size, _, _, _ := imgui.VertexBufferLayout()
	return vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    uint32(size),
		InputRate: vk.VertexInputRateVertex,
	}
}

func (drawVertex) AttributeDescriptions() []vk.VertexInputAttributeDescription {
	_, pos, uv, col := imgui.VertexBufferLayout()
	return []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(pos)},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(uv)},
		{Location: 2, Binding: 0, Format: vk.FormatR8g8b8a8Unorm, Offset: uint32(col)},
	}
}

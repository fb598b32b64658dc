package vkframe

import (
	"image"
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	lin "github.com/xlab/linmath"
)

// Shader blobs the renderer loads from Config.ShaderDir.
const (
	GeometryVertexShader      = "geometry.vert"
	GeometryFragmentShader    = "geometry.frag"
	CompositionVertexShader   = "composition.vert"
	CompositionFragmentShader = "composition.frag"
	OverlayVertexShader       = "overlay.vert"
	OverlayFragmentShader     = "overlay.frag"
)

var rendererShaders = []string{
	GeometryVertexShader, GeometryFragmentShader,
	CompositionVertexShader, CompositionFragmentShader,
}

// Overlay draws on top of the composited image in the last subpass. Prepare
// runs after every swapchain build and Release before the swapchain
// resources are torn down.
type Overlay interface {
	Prepare(env *OverlayEnv) error
	Record(cmd Commands, target *FrameTarget) error
	Release()
	Destroy()
}

// OverlayEnv is what an overlay may build its resources from.
type OverlayEnv struct {
	Device      *Device
	Uploader    *Uploader
	Textures    *TextureLoader
	Descriptors *DescriptorManager
	Cache       *PipelineCache
	Pass        *RenderPass
	Subpass     int
	Extent      vk.Extent2D
	ImageCount  int
	ShaderDir   string
	Stats       func() FrameStats
}

// FrameStats is a snapshot of the frame loop for diagnostics.
type FrameStats struct {
	Frames     uint64
	Slot       int
	ImageCount int
	Extent     vk.Extent2D
	Models     int
	Textures   int
}

// Renderer is a deferred renderer: a geometry subpass fills an albedo and
// normal G-buffer and a composition subpass lights it into the swapchain
// image. It is not safe for concurrent use.
type Renderer struct {
	Context *DeviceContext

	cfg         Config
	window      Window
	timeout     uint64
	depthFormat vk.Format

	transfer    *Transfer
	uploader    *Uploader
	textures    *TextureLoader
	descriptors *DescriptorManager
	cache       *PipelineCache
	shaders     map[string]*ShaderModule
	sync        []*FrameSync
	cmdPool     *CommandPool

	swapchain   *Swapchain
	pass        *RenderPass
	targets     *RenderTargets
	geometry    *Pipeline
	composition *Pipeline
	uniforms    *UniformBuffers
	cmds        []*CommandBuffer
	swapClean   *Cleanup

	recorder     *Recorder
	orchestrator *FrameOrchestrator
	overlay      Overlay

	meshes      []*Mesh
	models      []*Model
	textureSets map[*Texture]*DescriptorSet
	camera      CameraUniform

	cleanup *Cleanup
}

// NewRenderer bootstraps the device on window and builds every resource
// needed to draw. On failure everything created so far is released.
func NewRenderer(cfg Config, window Window) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout, err := cfg.AcquireTimeoutNanos()
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		cfg:         cfg,
		window:      window,
		timeout:     timeout,
		cleanup:     NewCleanup(),
		swapClean:   NewCleanup(),
		textureSets: make(map[*Texture]*DescriptorSet),
	}

	app := &App{Name: cfg.AppName, EngineName: "vkframe", Version: Version{Major: 1}}
	if cfg.Validation {
		if err := app.EnableDebugging(); err != nil {
			Logger().Warn("validation layers unavailable", "err", err)
		}
	}
	if r.Context, err = NewDeviceContext(app, window); err != nil {
		return nil, err
	}
	r.cleanup.Push(r.Context.Destroy)
	dev := r.Context.Device

	if err := r.init(dev); err != nil {
		r.cleanup.Release()
		return nil, err
	}

	w, h := window.FramebufferSize()
	r.SetCamera(NewCameraUniform(lin.Vec3{2, 2, 2}, lin.Vec3{0, 0, 0}, lin.Vec3{0, 0, 1}, 45, aspect(w, h), 0.1, 100))
	return r, nil
}

func (r *Renderer) init(dev *Device) error {
	var err error
	if r.transfer, err = dev.CreateTransfer(r.Context.GraphicsQueue); err != nil {
		return err
	}
	r.cleanup.Push(r.transfer.Destroy)
	r.uploader = NewUploader(r.transfer)
	r.textures = NewTextureLoader(r.transfer, r.cfg.MaxTextureSize)

	if r.depthFormat, err = r.Context.PhysicalDevice.FindDepthFormat(); err != nil {
		return err
	}
	if r.shaders, err = dev.LoadShaderModules(r.cfg.ShaderDir, rendererShaders...); err != nil {
		return err
	}
	r.cleanup.Push(func() { DestroyShaderModules(r.shaders) })

	if r.cache, err = dev.CreatePipelineCache(); err != nil {
		return err
	}
	r.cleanup.Push(r.cache.Destroy)

	inputs := len(DeferredPassGraph(vk.FormatUndefined, r.depthFormat).InputAttachments(1))
	if r.descriptors, err = NewDescriptorManager(dev, r.cfg.MaxTextures, inputs); err != nil {
		return err
	}
	r.cleanup.Push(r.descriptors.Destroy)

	if r.sync, err = dev.CreateFrameSync(r.cfg.MaxFramesInFlight); err != nil {
		return err
	}
	r.cleanup.Push(func() {
		for _, s := range r.sync {
			s.Destroy()
		}
	})

	if r.cmdPool, err = dev.CreateCommandPool(r.Context.QueueFamilies.Graphics, false); err != nil {
		return err
	}
	r.cleanup.Push(r.cmdPool.Destroy)

	if r.swapchain, err = dev.CreateSwapchain(r.Context.Surface, r.window, r.Context.QueueFamilies); err != nil {
		return err
	}
	r.cleanup.Push(r.swapchain.Destroy)

	r.recorder = &Recorder{PushLimit: r.Context.PhysicalDevice.Limits().MaxPushConstantsSize}
	if err := r.buildSwapchainResources(); err != nil {
		return err
	}
	r.cleanup.Push(r.releaseSwapchainResources)

	r.orchestrator = newFrameOrchestrator(r, r.cfg.MaxFramesInFlight)
	return nil
}

// buildSwapchainResources creates everything sized by the swapchain: the
// pass, the attachments and framebuffers, the pipelines, the uniform slices,
// the per-image descriptor sets and the command buffers.
func (r *Renderer) buildSwapchainResources() error {
	dev := r.Context.Device
	clean := r.swapClean
	images := r.swapchain.ImageCount()

	graph := DeferredPassGraph(r.swapchain.ColorFormat(), r.depthFormat)
	pass, err := dev.CreateRenderPass(graph)
	if err != nil {
		return err
	}
	r.pass = pass
	clean.Push(pass.Destroy)

	if r.targets, err = dev.CreateRenderTargets(pass, r.swapchain.Views, r.swapchain); err != nil {
		clean.Release()
		return err
	}
	clean.Push(r.targets.Destroy)

	geometry := NewPipelineConfig("geometry").
		SetSubpass(graph.SubpassIndex(GeometrySubpass)).
		AddShaderStage(r.shaders[GeometryVertexShader], vk.ShaderStageVertexBit, "main").
		AddShaderStage(r.shaders[GeometryFragmentShader], vk.ShaderStageFragmentBit, "main").
		AddVertexDescriptor(VertexData{}).
		AddDescriptorSetLayout(r.descriptors.FrameLayout).
		AddDescriptorSetLayout(r.descriptors.TextureLayout).
		AddPushConstantRange(vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, TransformSize)

	composition := NewPipelineConfig("composition").
		SetSubpass(graph.SubpassIndex(CompositionSubpass)).
		AddShaderStage(r.shaders[CompositionVertexShader], vk.ShaderStageVertexBit, "main").
		AddShaderStage(r.shaders[CompositionFragmentShader], vk.ShaderStageFragmentBit, "main").
		AddDescriptorSetLayout(r.descriptors.InputLayout).
		SetDepthWrite(false)

	pipelines, err := dev.BuildPipelines(r.cache, pass, r.swapchain.Extent(), geometry, composition)
	if err != nil {
		clean.Release()
		return err
	}
	r.geometry, r.composition = pipelines[0], pipelines[1]
	for _, p := range pipelines {
		clean.Push(p.Destroy)
	}
	r.recorder.Geometry = r.geometry
	r.recorder.Composition = r.composition

	align := uint64(r.Context.PhysicalDevice.Limits().MinUniformBufferOffsetAlignment)
	if r.uniforms, err = NewUniformBuffers(dev, images, uint64(unsafe.Sizeof(CameraUniform{})), align); err != nil {
		clean.Release()
		return err
	}
	clean.Push(r.uniforms.Destroy)

	var inputViews []vk.ImageView
	for _, name := range graph.InputAttachments(graph.SubpassIndex(CompositionSubpass)) {
		view, ok := r.targets.View(name)
		if !ok {
			clean.Release()
			return errors.Wrapf(ErrResourceNotFound, "input attachment %q", name)
		}
		inputViews = append(inputViews, view.VKImageView)
	}
	if err := r.descriptors.AllocateSwapchainSets(images, r.uniforms, inputViews); err != nil {
		clean.Release()
		return err
	}
	clean.Push(r.descriptors.ReleaseSwapchainSets)

	if r.cmds, err = r.cmdPool.AllocateBuffers(images); err != nil {
		clean.Release()
		return err
	}
	cmds := r.cmds
	clean.Push(func() { r.cmdPool.FreeBuffers(cmds) })

	if r.overlay != nil {
		if err := r.overlay.Prepare(r.overlayEnv()); err != nil {
			clean.Release()
			return errors.Wrap(err, "prepare overlay")
		}
		clean.Push(r.overlay.Release)
	}

	ext := r.swapchain.Extent()
	Logger().Info("swapchain resources built", "images", images, "width", ext.Width, "height", ext.Height)
	return nil
}

func (r *Renderer) releaseSwapchainResources() {
	r.swapClean.Release()
	r.cmds = nil
}

func (r *Renderer) overlayEnv() *OverlayEnv {
	return &OverlayEnv{
		Device:      r.Context.Device,
		Uploader:    r.uploader,
		Textures:    r.textures,
		Descriptors: r.descriptors,
		Cache:       r.cache,
		Pass:        r.pass,
		Subpass:     r.pass.Graph.SubpassIndex(CompositionSubpass),
		Extent:      r.swapchain.Extent(),
		ImageCount:  r.swapchain.ImageCount(),
		ShaderDir:   r.cfg.ShaderDir,
		Stats:       r.Stats,
	}
}

// SetOverlay installs o, preparing it for the current swapchain.
func (r *Renderer) SetOverlay(o Overlay) error {
	if r.overlay != nil {
		return errors.New("overlay already set")
	}
	if err := o.Prepare(r.overlayEnv()); err != nil {
		return errors.Wrap(err, "prepare overlay")
	}
	r.overlay = o
	r.swapClean.Push(o.Release)
	r.recorder.Overlay = o.Record
	return nil
}

// UploadMesh uploads vertices and indices into device-local buffers. The
// renderer owns the mesh.
func (r *Renderer) UploadMesh(vertices BufferObject, indices IndexSource) (*Mesh, error) {
	m, err := NewMesh(r.uploader, vertices, indices)
	if err != nil {
		return nil, err
	}
	r.meshes = append(r.meshes, m)
	return m, nil
}

// LoadTexture decodes and uploads the image at path.
func (r *Renderer) LoadTexture(path string) (*Texture, error) {
	return r.textures.Load(path)
}

// CreateTexture uploads an in-memory image under name.
func (r *Renderer) CreateTexture(name string, img *image.RGBA) (*Texture, error) {
	return r.textures.FromImage(name, img)
}

// AddModel adds a drawable instance of mesh sampled with tex.
func (r *Renderer) AddModel(name string, mesh *Mesh, tex *Texture) (*Model, error) {
	if mesh == nil || tex == nil {
		return nil, errors.Wrapf(ErrResourceNotFound, "model %s needs a mesh and a texture", name)
	}
	set, ok := r.textureSets[tex]
	if !ok {
		var err error
		if set, err = r.descriptors.AllocateTextureSet(tex.View, tex.Sampler); err != nil {
			return nil, errors.Wrapf(err, "model %s", name)
		}
		r.textureSets[tex] = set
	}
	m := NewModel(name, mesh, set)
	r.models = append(r.models, m)
	return m, nil
}

func (r *Renderer) Models() []*Model {
	return r.models
}

// SetCamera sets the uniform written into each image's slice before recording.
func (r *Renderer) SetCamera(c CameraUniform) {
	r.camera = c
}

// Resized tells the renderer the window's framebuffer changed size.
func (r *Renderer) Resized() {
	r.orchestrator.NotifyResized()
}

// ReadBack copies a device-local buffer back to the host.
func (r *Renderer) ReadBack(buf *BoundBuffer) ([]byte, error) {
	return r.uploader.ReadBack(buf)
}

func (r *Renderer) Extent() vk.Extent2D {
	return r.swapchain.Extent()
}

func (r *Renderer) Stats() FrameStats {
	return FrameStats{
		Frames:     r.orchestrator.Frames(),
		Slot:       r.orchestrator.Slot(),
		ImageCount: r.swapchain.ImageCount(),
		Extent:     r.swapchain.Extent(),
		Models:     len(r.models),
		Textures:   r.textures.Len(),
	}
}

// DrawFrame renders and presents one frame. A minimized window is skipped
// without touching GPU state.
func (r *Renderer) DrawFrame() (FrameResult, error) {
	if w, h := r.window.FramebufferSize(); w == 0 || h == 0 {
		return FrameResult{Skipped: true}, nil
	}
	return r.orchestrator.DrawFrame()
}

// Destroy waits for the GPU and releases everything in reverse creation order.
func (r *Renderer) Destroy() {
	if err := r.Context.Device.WaitIdle(); err != nil {
		Logger().Error("wait idle before destroy", "err", err)
	}
	r.releaseSwapchainResources()
	if r.overlay != nil {
		r.overlay.Destroy()
		r.overlay = nil
		r.recorder.Overlay = nil
	}
	for _, m := range r.meshes {
		m.Destroy()
	}
	r.meshes = nil
	r.models = nil
	r.textures.Destroy()
	r.cleanup.Release()
}

func aspect(w, h int) float32 {
	if h == 0 {
		return 1
	}
	return float32(w) / float32(h)
}

// frameBackend

func (r *Renderer) WaitFence(slot int) error {
	return r.sync[slot].Wait()
}

func (r *Renderer) ResetFence(slot int) error {
	return r.sync[slot].InFlight.Reset()
}

func (r *Renderer) Acquire(slot int) (uint32, SwapchainStatus, error) {
	return r.swapchain.AcquireNextImage(r.timeout, r.sync[slot].ImageAvailable)
}

func (r *Renderer) Record(slot int, image uint32) error {
	if err := r.uniforms.Update(int(image), r.camera.Bytes()); err != nil {
		return err
	}
	target := &FrameTarget{
		ImageIndex:  image,
		RenderPass:  r.pass.VKRenderPass,
		Framebuffer: r.targets.Framebuffers[image].VKFramebuffer,
		Extent:      r.targets.Extent,
		Clears:      r.pass.Graph.ClearValues(r.cfg.ClearColor),
		FrameSet:    r.descriptors.FrameSets[image],
		InputSet:    r.descriptors.InputSets[image],
	}
	drawables := make([]Drawable, len(r.models))
	for i, m := range r.models {
		drawables[i] = m
	}
	return r.recorder.Record(r.cmds[image], target, drawables)
}

func (r *Renderer) Submit(slot int, image uint32) error {
	s := r.sync[slot]
	return r.Context.GraphicsQueue.SubmitFrame(r.cmds[image], s.ImageAvailable, s.RenderFinished, s.InFlight)
}

func (r *Renderer) Present(slot int, image uint32) (SwapchainStatus, error) {
	return r.swapchain.Present(r.Context.PresentQueue, r.sync[slot].RenderFinished, image)
}

// Recreate rebuilds the swapchain and everything sized by it. Meshes,
// textures and models are kept.
func (r *Renderer) Recreate() (int, error) {
	if err := r.Context.Device.WaitIdle(); err != nil {
		return 0, err
	}
	r.releaseSwapchainResources()
	if err := r.swapchain.Recreate(); err != nil {
		return 0, err
	}
	if err := r.buildSwapchainResources(); err != nil {
		return 0, err
	}
	ext := r.swapchain.Extent()
	Logger().Info("swapchain recreated", "width", ext.Width, "height", ext.Height, "images", r.swapchain.ImageCount())
	return r.swapchain.ImageCount(), nil
}

func (r *Renderer) ImageCount() int {
	return r.swapchain.ImageCount()
}

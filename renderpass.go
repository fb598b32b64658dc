package vkframe

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// AttachmentKind says how an attachment is stored and which layout it ends in.
type AttachmentKind int

const (
	// AttachmentPresent is backed by the swapchain image and ends presentable.
	AttachmentPresent AttachmentKind = iota
	// AttachmentColor is an intermediate color target that lives only inside
	// the pass, such as a G-buffer channel.
	AttachmentColor
	AttachmentDepth
)

// Attachment and subpass names used by DeferredPassGraph.
const (
	PresentAttachment = "present"
	AlbedoAttachment  = "albedo"
	NormalAttachment  = "normal"
	DepthAttachment   = "depth"

	GeometrySubpass    = "geometry"
	CompositionSubpass = "composition"
)

type AttachmentSpec struct {
	Name   string
	Format vk.Format
	Kind   AttachmentKind
}

// SubpassSpec names the attachments a subpass writes as color, reads as
// input attachments and uses as depth. Depth may be empty.
type SubpassSpec struct {
	Name   string
	Colors []string
	Inputs []string
	Depth  string
}

// PassGraph is a declarative description of a render pass. Dependencies are
// not declared: Describe derives them from how subpasses use attachments.
type PassGraph struct {
	Attachments []AttachmentSpec
	Subpasses   []SubpassSpec
}

func NewPassGraph() *PassGraph {
	return &PassGraph{}
}

func (g *PassGraph) AddAttachment(name string, format vk.Format, kind AttachmentKind) *PassGraph {
	g.Attachments = append(g.Attachments, AttachmentSpec{Name: name, Format: format, Kind: kind})
	return g
}

func (g *PassGraph) AddSubpass(spec SubpassSpec) *PassGraph {
	g.Subpasses = append(g.Subpasses, spec)
	return g
}

// AttachmentIndex returns the position of the named attachment or -1.
func (g *PassGraph) AttachmentIndex(name string) int {
	for i, a := range g.Attachments {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// SubpassIndex returns the position of the named subpass or -1.
func (g *PassGraph) SubpassIndex(name string) int {
	for i, s := range g.Subpasses {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// InputAttachments returns the input attachment names of subpass i.
func (g *PassGraph) InputAttachments(i int) []string {
	if i < 0 || i >= len(g.Subpasses) {
		return nil
	}
	return g.Subpasses[i].Inputs
}

// ReadAsInput reports whether any subpass reads the attachment as input.
func (g *PassGraph) ReadAsInput(name string) bool {
	for _, s := range g.Subpasses {
		for _, in := range s.Inputs {
			if in == name {
				return true
			}
		}
	}
	return false
}

// ColorAttachmentCount returns the number of color outputs of subpass i,
// which is the number of blend states its pipelines need.
func (g *PassGraph) ColorAttachmentCount(i int) int {
	if i < 0 || i >= len(g.Subpasses) {
		return 0
	}
	return len(g.Subpasses[i].Colors)
}

// ClearValues returns one clear value per attachment: color for color and
// present attachments and the far plane for depth.
func (g *PassGraph) ClearValues(color []float32) []vk.ClearValue {
	values := make([]vk.ClearValue, len(g.Attachments))
	for i, a := range g.Attachments {
		switch a.Kind {
		case AttachmentDepth:
			values[i].SetDepthStencil(1.0, 0)
		case AttachmentColor:
			values[i].SetColor([]float32{0, 0, 0, 0})
		default:
			values[i].SetColor(color)
		}
	}
	return values
}

// DeferredPassGraph describes the two subpass deferred pass: geometry fills
// the G-buffer and depth, composition reads the G-buffer as input
// attachments and writes the swapchain image.
func DeferredPassGraph(colorFormat, depthFormat vk.Format) *PassGraph {
	return NewPassGraph().
		AddAttachment(PresentAttachment, colorFormat, AttachmentPresent).
		AddAttachment(AlbedoAttachment, vk.FormatR8g8b8a8Unorm, AttachmentColor).
		AddAttachment(NormalAttachment, vk.FormatR16g16b16a16Sfloat, AttachmentColor).
		AddAttachment(DepthAttachment, depthFormat, AttachmentDepth).
		AddSubpass(SubpassSpec{
			Name:   GeometrySubpass,
			Colors: []string{AlbedoAttachment, NormalAttachment},
			Depth:  DepthAttachment,
		}).
		AddSubpass(SubpassSpec{
			Name:   CompositionSubpass,
			Colors: []string{PresentAttachment},
			Inputs: []string{AlbedoAttachment, NormalAttachment},
		})
}

func (g *PassGraph) validate() error {
	if len(g.Subpasses) == 0 {
		return errors.Wrap(ErrInvalidPassGraph, "no subpasses")
	}

	kinds := make(map[string]AttachmentKind, len(g.Attachments))
	present := ""
	for _, a := range g.Attachments {
		if a.Name == "" {
			return errors.Wrap(ErrInvalidPassGraph, "unnamed attachment")
		}
		if _, dup := kinds[a.Name]; dup {
			return errors.Wrapf(ErrInvalidPassGraph, "attachment %q declared twice", a.Name)
		}
		kinds[a.Name] = a.Kind
		if a.Kind == AttachmentPresent {
			if present != "" {
				return errors.Wrapf(ErrInvalidPassGraph, "attachments %q and %q are both presentable", present, a.Name)
			}
			present = a.Name
		}
	}
	if present == "" {
		return errors.Wrap(ErrInvalidPassGraph, "no presentable attachment")
	}

	subpassNames := make(map[string]bool, len(g.Subpasses))
	written := make(map[string]int)
	for i, s := range g.Subpasses {
		if subpassNames[s.Name] {
			return errors.Wrapf(ErrInvalidPassGraph, "subpass %q declared twice", s.Name)
		}
		subpassNames[s.Name] = true

		for _, in := range s.Inputs {
			kind, ok := kinds[in]
			if !ok {
				return errors.Wrapf(ErrInvalidPassGraph, "subpass %q reads unknown attachment %q", s.Name, in)
			}
			if kind == AttachmentPresent {
				return errors.Wrapf(ErrInvalidPassGraph, "subpass %q reads the presentable attachment", s.Name)
			}
			if _, ok := written[in]; !ok {
				return errors.Wrapf(ErrInvalidPassGraph, "subpass %q reads %q before any subpass writes it", s.Name, in)
			}
		}
		for _, c := range s.Colors {
			kind, ok := kinds[c]
			if !ok {
				return errors.Wrapf(ErrInvalidPassGraph, "subpass %q writes unknown attachment %q", s.Name, c)
			}
			if kind == AttachmentDepth {
				return errors.Wrapf(ErrInvalidPassGraph, "subpass %q writes depth attachment %q as color", s.Name, c)
			}
			if contains(s.Inputs, c) {
				return errors.Wrapf(ErrInvalidPassGraph, "subpass %q both reads and writes %q", s.Name, c)
			}
			written[c] = i
		}
		if s.Depth != "" {
			kind, ok := kinds[s.Depth]
			if !ok || kind != AttachmentDepth {
				return errors.Wrapf(ErrInvalidPassGraph, "subpass %q uses %q as depth", s.Name, s.Depth)
			}
			written[s.Depth] = i
		}
	}

	last := g.Subpasses[len(g.Subpasses)-1]
	if !contains(last.Colors, present) {
		return errors.Wrapf(ErrInvalidPassGraph, "last subpass %q does not write %q", last.Name, present)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// PassDescription holds the Vulkan structures derived from a PassGraph.
type PassDescription struct {
	Attachments  []vk.AttachmentDescription
	Subpasses    []vk.SubpassDescription
	Dependencies []vk.SubpassDependency
}

// Describe validates the graph and derives attachment descriptions, subpass
// descriptions and dependencies. Two boundary dependencies are always
// present: external to the first subpass and the last subpass to external.
// A later subpass that is the first to use an attachment also gets an
// external dependency.
// Every subpass that reads another's output as an input attachment gets an
// internal dependency on its producer.
func (g *PassGraph) Describe() (*PassDescription, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}

	desc := &PassDescription{}
	for _, a := range g.Attachments {
		desc.Attachments = append(desc.Attachments, attachmentDescription(a))
	}

	for _, s := range g.Subpasses {
		sd := vk.SubpassDescription{PipelineBindPoint: vk.PipelineBindPointGraphics}
		for _, c := range s.Colors {
			sd.PColorAttachments = append(sd.PColorAttachments, vk.AttachmentReference{
				Attachment: uint32(g.AttachmentIndex(c)),
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			})
		}
		sd.ColorAttachmentCount = uint32(len(sd.PColorAttachments))
		for _, in := range s.Inputs {
			sd.PInputAttachments = append(sd.PInputAttachments, vk.AttachmentReference{
				Attachment: uint32(g.AttachmentIndex(in)),
				Layout:     vk.ImageLayoutShaderReadOnlyOptimal,
			})
		}
		sd.InputAttachmentCount = uint32(len(sd.PInputAttachments))
		if s.Depth != "" {
			sd.PDepthStencilAttachment = &vk.AttachmentReference{
				Attachment: uint32(g.AttachmentIndex(s.Depth)),
				Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
			}
		}
		desc.Subpasses = append(desc.Subpasses, sd)
	}

	desc.Dependencies = g.dependencies()
	return desc, nil
}

func (g *PassGraph) dependencies() []vk.SubpassDependency {
	byRegion := vk.DependencyFlags(vk.DependencyByRegionBit)
	colorRW := vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit)

	first := vk.SubpassDependency{
		SrcSubpass:      vk.SubpassExternal,
		DstSubpass:      0,
		SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
		DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask:   vk.AccessFlags(vk.AccessMemoryReadBit),
		DstAccessMask:   colorRW,
		DependencyFlags: byRegion,
	}
	if g.usesDepth() {
		first.SrcStageMask |= vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit)
		first.SrcAccessMask |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
		first.DstStageMask |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		first.DstAccessMask |= vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
	}
	deps := []vk.SubpassDependency{first}

	// The layout change of an attachment first used past subpass 0 waits on
	// an external dependency into that subpass.
	for i := 1; i < len(g.Subpasses); i++ {
		colors, depth := g.firstUses(i)
		if !colors && !depth {
			continue
		}
		dep := vk.SubpassDependency{
			SrcSubpass:      vk.SubpassExternal,
			DstSubpass:      uint32(i),
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			DstAccessMask:   colorRW,
			DependencyFlags: byRegion,
		}
		if depth {
			dep.SrcStageMask |= vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit)
			dep.DstStageMask |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
			dep.DstAccessMask |= vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
		}
		deps = append(deps, dep)
	}

	type edge struct{ src, dst int }
	seen := make(map[edge]bool)
	for dst, s := range g.Subpasses {
		for _, in := range s.Inputs {
			src := g.producer(in, dst)
			e := edge{src, dst}
			if seen[e] {
				continue
			}
			seen[e] = true
			dep := vk.SubpassDependency{
				SrcSubpass:      uint32(src),
				DstSubpass:      uint32(dst),
				SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
				DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
				SrcAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
				DstAccessMask:   vk.AccessFlags(vk.AccessInputAttachmentReadBit),
				DependencyFlags: byRegion,
			}
			if g.Subpasses[src].Depth == in {
				dep.SrcStageMask = vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit)
				dep.SrcAccessMask = vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
			}
			deps = append(deps, dep)
		}
	}

	deps = append(deps, vk.SubpassDependency{
		SrcSubpass:      uint32(len(g.Subpasses) - 1),
		DstSubpass:      vk.SubpassExternal,
		SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
		SrcAccessMask:   colorRW,
		DstAccessMask:   vk.AccessFlags(vk.AccessMemoryReadBit),
		DependencyFlags: byRegion,
	})
	return deps
}

// producer returns the last subpass before before that writes name.
func (g *PassGraph) producer(name string, before int) int {
	for i := before - 1; i >= 0; i-- {
		s := g.Subpasses[i]
		if s.Depth == name || contains(s.Colors, name) {
			return i
		}
	}
	return -1
}

// firstUser returns the first subpass that references name, or -1.
func (g *PassGraph) firstUser(name string) int {
	for i, s := range g.Subpasses {
		if s.Depth == name || contains(s.Colors, name) || contains(s.Inputs, name) {
			return i
		}
	}
	return -1
}

// firstUses reports whether subpass i is the first user of a color or a
// depth attachment.
func (g *PassGraph) firstUses(i int) (colors, depth bool) {
	s := g.Subpasses[i]
	for _, c := range s.Colors {
		if g.firstUser(c) == i {
			colors = true
		}
	}
	if s.Depth != "" && g.firstUser(s.Depth) == i {
		depth = true
	}
	return colors, depth
}

func (g *PassGraph) usesDepth() bool {
	for _, s := range g.Subpasses {
		if s.Depth != "" {
			return true
		}
	}
	return false
}

func attachmentDescription(a AttachmentSpec) vk.AttachmentDescription {
	d := vk.AttachmentDescription{
		Format:         a.Format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
	}
	switch a.Kind {
	case AttachmentPresent:
		d.StoreOp = vk.AttachmentStoreOpStore
		d.FinalLayout = vk.ImageLayoutPresentSrc
	case AttachmentColor:
		d.FinalLayout = vk.ImageLayoutColorAttachmentOptimal
	case AttachmentDepth:
		d.FinalLayout = vk.ImageLayoutDepthStencilAttachmentOptimal
	}
	return d
}

// VKRenderPassCreateInfo wraps the description for vkCreateRenderPass.
func (d *PassDescription) VKRenderPassCreateInfo() vk.RenderPassCreateInfo {
	return vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(d.Attachments)),
		PAttachments:    d.Attachments,
		SubpassCount:    uint32(len(d.Subpasses)),
		PSubpasses:      d.Subpasses,
		DependencyCount: uint32(len(d.Dependencies)),
		PDependencies:   d.Dependencies,
	}
}

type RenderPass struct {
	Device       *Device
	VKRenderPass vk.RenderPass
	Graph        *PassGraph
}

func (d *Device) CreateRenderPass(graph *PassGraph) (*RenderPass, error) {
	desc, err := graph.Describe()
	if err != nil {
		return nil, err
	}
	info := desc.VKRenderPassCreateInfo()

	var renderPass vk.RenderPass
	if err := vkError(vk.CreateRenderPass(d.VKDevice, &info, nil, &renderPass), "create render pass"); err != nil {
		return nil, err
	}
	Logger().Info("render pass created", "attachments", len(desc.Attachments), "subpasses", len(desc.Subpasses), "dependencies", len(desc.Dependencies))
	return &RenderPass{Device: d, VKRenderPass: renderPass, Graph: graph}, nil
}

func (r *RenderPass) Destroy() {
	vk.DestroyRenderPass(r.Device.VKDevice, r.VKRenderPass, nil)
}

package vkframe

import (
	"math/rand"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// fakeMemory is host memory backed by a byte slice.
type fakeMemory struct {
	data []byte
}

func (m *fakeMemory) Write(offset uint64, data []byte) error {
	copy(m.data[offset:], data)
	return nil
}

func (m *fakeMemory) Read(offset, size uint64) ([]byte, error) {
	return append([]byte(nil), m.data[offset:offset+size]...), nil
}

// cmdOp is one recorded command with the arguments tests care about.
type cmdOp struct {
	name string
	args []interface{}
}

// fakeCommands records commands instead of encoding them.
type fakeCommands struct {
	ops    []cmdOp
	endErr error
}

func (c *fakeCommands) add(name string, args ...interface{}) {
	c.ops = append(c.ops, cmdOp{name: name, args: args})
}

func (c *fakeCommands) names() []string {
	ret := make([]string, len(c.ops))
	for i, op := range c.ops {
		ret[i] = op.name
	}
	return ret
}

func (c *fakeCommands) find(name string) []cmdOp {
	var ret []cmdOp
	for _, op := range c.ops {
		if op.name == name {
			ret = append(ret, op)
		}
	}
	return ret
}

func (c *fakeCommands) Reset() error { c.ops = nil; c.add("reset"); return nil }
func (c *fakeCommands) Begin() error { c.add("begin"); return nil }
func (c *fakeCommands) End() error   { c.add("end"); return c.endErr }

func (c *fakeCommands) BeginRenderPass(pass vk.RenderPass, fb vk.Framebuffer, extent vk.Extent2D, clears []vk.ClearValue) {
	c.add("beginRenderPass", extent, len(clears))
}
func (c *fakeCommands) NextSubpass()   { c.add("nextSubpass") }
func (c *fakeCommands) EndRenderPass() { c.add("endRenderPass") }

func (c *fakeCommands) BindPipeline(p *Pipeline) { c.add("bindPipeline", p) }
func (c *fakeCommands) BindVertexBuffer(b *BoundBuffer, offset uint64) {
	c.add("bindVertexBuffer", b, offset)
}
func (c *fakeCommands) BindIndexBuffer(b *BoundBuffer, offset uint64, t vk.IndexType) {
	c.add("bindIndexBuffer", b, offset, t)
}
func (c *fakeCommands) BindDescriptorSets(layout vk.PipelineLayout, firstSet int, sets ...*DescriptorSet) {
	c.add("bindDescriptorSets", firstSet, sets)
}
func (c *fakeCommands) PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	c.add("pushConstants", stages, offset, append([]byte(nil), data...))
}
func (c *fakeCommands) SetViewport(extent vk.Extent2D) { c.add("setViewport", extent) }
func (c *fakeCommands) SetScissor(rect vk.Rect2D)      { c.add("setScissor", rect) }
func (c *fakeCommands) Draw(vertices, instances uint32) {
	c.add("draw", vertices, instances)
}
func (c *fakeCommands) DrawIndexed(indices, firstIndex uint32, vertexOffset int32) {
	c.add("drawIndexed", indices, firstIndex, vertexOffset)
}
func (c *fakeCommands) CopyBuffer(src, dst *BoundBuffer, size uint64) {
	c.add("copyBuffer", src, dst, size)
}
func (c *fakeCommands) CopyBufferToImage(src *BoundBuffer, dst *BoundImage) {
	c.add("copyBufferToImage", src, dst)
}
func (c *fakeCommands) Barrier(t ImageTransition, image *BoundImage) {
	c.add("barrier", t, image)
}

// fakeTransfer is an in-memory TextureDevice. Submitted copies are executed
// against the backing store of each buffer and image.
type fakeTransfer struct {
	backing map[*BoundBuffer]*fakeMemory
	props   map[*BoundBuffer]vk.MemoryPropertyFlags
	pixels  map[*BoundImage][]byte
	live    map[interface{}]bool

	submits   []*fakeCommands
	failAfter int // fail SubmitOneTime once this many submits succeeded, if > 0
	failImage bool
}

func newFakeTransfer() *fakeTransfer {
	return &fakeTransfer{
		backing: make(map[*BoundBuffer]*fakeMemory),
		props:   make(map[*BoundBuffer]vk.MemoryPropertyFlags),
		pixels:  make(map[*BoundImage][]byte),
		live:    make(map[interface{}]bool),
	}
}

func (f *fakeTransfer) CreateBoundBuffer(size uint64, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlags) (*BoundBuffer, error) {
	mem := &fakeMemory{data: make([]byte, size)}
	var host HostMemory
	if props&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0 {
		host = mem
	}
	var b *BoundBuffer
	b = NewBoundBuffer(nil, size, usage, host, func() { delete(f.live, b) })
	f.backing[b] = mem
	f.props[b] = props
	f.live[b] = true
	return b, nil
}

func (f *fakeTransfer) CreateBoundImage(extent vk.Extent2D, format vk.Format, usage vk.ImageUsageFlags, props vk.MemoryPropertyFlags) (*BoundImage, error) {
	if f.failImage {
		return nil, errors.New("out of device memory")
	}
	var img *BoundImage
	img = NewBoundImage(nil, format, extent, usage, func() { delete(f.live, img) })
	f.live[img] = true
	return img, nil
}

func (f *fakeTransfer) CreateImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (*ImageView, error) {
	return &ImageView{}, nil
}

func (f *fakeTransfer) CreateSampler() (*Sampler, error) {
	return &Sampler{}, nil
}

func (f *fakeTransfer) SubmitOneTime(record func(cmd Commands) error) error {
	if f.failAfter > 0 && len(f.submits) >= f.failAfter {
		return errors.New("queue submit failed")
	}
	cmd := &fakeCommands{}
	if err := record(cmd); err != nil {
		return err
	}
	for _, op := range cmd.ops {
		switch op.name {
		case "copyBuffer":
			src, dst, size := op.args[0].(*BoundBuffer), op.args[1].(*BoundBuffer), op.args[2].(uint64)
			copy(f.backing[dst].data[:size], f.backing[src].data[:size])
		case "copyBufferToImage":
			src, dst := op.args[0].(*BoundBuffer), op.args[1].(*BoundImage)
			f.pixels[dst] = append([]byte(nil), f.backing[src].data...)
		}
	}
	f.submits = append(f.submits, cmd)
	return nil
}

// liveBuffers counts undestroyed buffers.
func (f *fakeTransfer) liveBuffers() int {
	n := 0
	for r := range f.live {
		if _, ok := r.(*BoundBuffer); ok {
			n++
		}
	}
	return n
}

// fakeWriter records descriptor writes.
type fakeWriter struct {
	writes [][]vk.WriteDescriptorSet
}

func (w *fakeWriter) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	w.writes = append(w.writes, writes)
}

// simBackend simulates a GPU with asynchronous completion. Each slot has a
// fence; a submission occupies an image until its slot's fence is observed
// signaled, which happens on WaitFence or at random.
type simBackend struct {
	rng    *rand.Rand
	images int

	fenceSignaled []bool
	// busy[i] is the slot whose unfinished submission uses image i, or -1.
	busy []int

	acquireStatus []SwapchainStatus
	acquireErr    []error
	presentStatus []SwapchainStatus
	nextImage     func() uint32

	recreates  int
	recreateTo int

	recorded  []recordEvent
	presented []recordEvent
	violation string
}

type recordEvent struct {
	slot  int
	image uint32
}

func newSimBackend(seed int64, slots, images int) *simBackend {
	b := &simBackend{
		rng:           rand.New(rand.NewSource(seed)),
		images:        images,
		fenceSignaled: make([]bool, slots),
	}
	for i := range b.fenceSignaled {
		b.fenceSignaled[i] = true
	}
	b.resetBusy()
	return b
}

func (b *simBackend) resetBusy() {
	b.busy = make([]int, b.images)
	for i := range b.busy {
		b.busy[i] = -1
	}
}

func (b *simBackend) complete(slot int) {
	b.fenceSignaled[slot] = true
	for i, s := range b.busy {
		if s == slot {
			b.busy[i] = -1
		}
	}
}

func (b *simBackend) WaitFence(slot int) error {
	b.complete(slot)
	return nil
}

func (b *simBackend) ResetFence(slot int) error {
	if !b.fenceSignaled[slot] && b.violation == "" {
		b.violation = "reset of an unsignaled fence"
	}
	b.fenceSignaled[slot] = false
	return nil
}

func (b *simBackend) Acquire(slot int) (uint32, SwapchainStatus, error) {
	// unrelated work finishes in the background
	for s := range b.fenceSignaled {
		if !b.fenceSignaled[s] && b.rng.Intn(3) == 0 {
			b.complete(s)
		}
	}
	if len(b.acquireErr) > 0 {
		err := b.acquireErr[0]
		b.acquireErr = b.acquireErr[1:]
		if err != nil {
			return 0, SwapchainOptimal, err
		}
	}
	status := SwapchainOptimal
	if len(b.acquireStatus) > 0 {
		status, b.acquireStatus = b.acquireStatus[0], b.acquireStatus[1:]
	}
	if status == SwapchainOutOfDate {
		return 0, status, nil
	}
	if b.nextImage != nil {
		return b.nextImage(), status, nil
	}
	return uint32(b.rng.Intn(b.images)), status, nil
}

func (b *simBackend) Record(slot int, image uint32) error {
	if b.busy[image] >= 0 && b.violation == "" {
		b.violation = "image re-recorded while its previous submission is pending"
	}
	b.recorded = append(b.recorded, recordEvent{slot: slot, image: image})
	return nil
}

func (b *simBackend) Submit(slot int, image uint32) error {
	if b.fenceSignaled[slot] && b.violation == "" {
		b.violation = "submit with a signaled fence"
	}
	b.busy[image] = slot
	return nil
}

func (b *simBackend) Present(slot int, image uint32) (SwapchainStatus, error) {
	b.presented = append(b.presented, recordEvent{slot: slot, image: image})
	if len(b.presentStatus) > 0 {
		s := b.presentStatus[0]
		b.presentStatus = b.presentStatus[1:]
		return s, nil
	}
	return SwapchainOptimal, nil
}

func (b *simBackend) Recreate() (int, error) {
	for s := range b.fenceSignaled {
		b.complete(s)
	}
	b.recreates++
	if b.recreateTo > 0 {
		b.images = b.recreateTo
	}
	b.resetBusy()
	return b.images, nil
}

func (b *simBackend) ImageCount() int {
	return b.images
}

package vkframe

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func testMesh(indices uint32) *Mesh {
	return &Mesh{
		Vertices:   NewBoundBuffer(nil, 64, 0, nil, nil),
		Indices:    NewBoundBuffer(nil, 64, 0, nil, nil),
		IndexCount: indices,
		IndexType:  vk.IndexTypeUint16,
	}
}

func testTarget() *FrameTarget {
	w := &fakeWriter{}
	return &FrameTarget{
		ImageIndex: 1,
		Extent:     vk.Extent2D{Width: 640, Height: 480},
		Clears:     make([]vk.ClearValue, 4),
		FrameSet:   NewDescriptorSet(w, nil),
		InputSet:   NewDescriptorSet(w, nil),
	}
}

func testRecorder() *Recorder {
	return &Recorder{
		Geometry:    &Pipeline{Name: "geometry", Layout: &PipelineLayout{}},
		Composition: &Pipeline{Name: "composition", Layout: &PipelineLayout{}},
		PushLimit:   128,
	}
}

func TestRecordOrder(t *testing.T) {
	r := testRecorder()
	target := testTarget()
	texA := NewDescriptorSet(&fakeWriter{}, nil)
	texB := NewDescriptorSet(&fakeWriter{}, nil)
	a := NewModel("a", testMesh(36), texA)
	b := NewModel("b", testMesh(6), texB)
	b.Translate(1, 2, 3)

	cmd := &fakeCommands{}
	require.NoError(t, r.Record(cmd, target, []Drawable{a, b}))

	perDrawable := []string{"pushConstants", "bindVertexBuffer", "bindIndexBuffer", "bindDescriptorSets", "drawIndexed"}
	want := []string{"reset", "begin", "beginRenderPass", "bindPipeline"}
	want = append(want, perDrawable...)
	want = append(want, perDrawable...)
	want = append(want, "nextSubpass", "bindPipeline", "bindDescriptorSets", "draw", "endRenderPass", "end")
	assert.Equal(t, want, cmd.names())

	pipelines := cmd.find("bindPipeline")
	assert.Same(t, r.Geometry, pipelines[0].args[0])
	assert.Same(t, r.Composition, pipelines[1].args[0])

	sets := cmd.find("bindDescriptorSets")
	require.Len(t, sets, 3)
	assert.Equal(t, FrameSetIndex, sets[0].args[0])
	assert.Equal(t, []*DescriptorSet{target.FrameSet, texA}, sets[0].args[1])
	assert.Equal(t, []*DescriptorSet{target.FrameSet, texB}, sets[1].args[1])
	assert.Equal(t, []*DescriptorSet{target.InputSet}, sets[2].args[1])

	draws := cmd.find("drawIndexed")
	assert.Equal(t, uint32(36), draws[0].args[0])
	assert.Equal(t, uint32(6), draws[1].args[0])

	push := cmd.find("pushConstants")
	assert.Equal(t, b.PushConstants(), push[1].args[2])
	assert.Len(t, push[1].args[2], int(TransformSize))

	fullscreen := cmd.find("draw")
	assert.Equal(t, []interface{}{uint32(FullscreenTriangleVertices), uint32(1)}, fullscreen[0].args)
}

func TestRecordWithoutDrawables(t *testing.T) {
	cmd := &fakeCommands{}
	require.NoError(t, testRecorder().Record(cmd, testTarget(), nil))
	assert.Equal(t, []string{
		"reset", "begin", "beginRenderPass", "bindPipeline",
		"nextSubpass", "bindPipeline", "bindDescriptorSets", "draw",
		"endRenderPass", "end",
	}, cmd.names())
}

func TestRecordRejectsInvalidDrawables(t *testing.T) {
	tex := NewDescriptorSet(&fakeWriter{}, nil)
	cases := map[string]struct {
		drawable Drawable
		target   error
	}{
		"nil drawable":   {nil, ErrResourceNotFound},
		"no mesh":        {NewModel("m", nil, tex), ErrResourceNotFound},
		"empty mesh":     {NewModel("m", testMesh(0), tex), ErrResourceNotFound},
		"no texture set": {NewModel("m", testMesh(3), nil), ErrResourceNotFound},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			cmd := &fakeCommands{}
			good := NewModel("good", testMesh(3), tex)
			err := testRecorder().Record(cmd, testTarget(), []Drawable{good, c.drawable})
			require.Error(t, err)
			assert.True(t, errors.Is(err, c.target))
			assert.Empty(t, cmd.ops, "nothing is recorded")
		})
	}
}

func TestRecordRejectsOversizedPushConstants(t *testing.T) {
	r := testRecorder()
	r.PushLimit = 32
	cmd := &fakeCommands{}
	m := NewModel("m", testMesh(3), NewDescriptorSet(&fakeWriter{}, nil))
	err := r.Record(cmd, testTarget(), []Drawable{m})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPushConstantsTooLarge))
	assert.Empty(t, cmd.ops)
}

func TestRecordRequiresTargetSets(t *testing.T) {
	target := testTarget()
	target.InputSet = nil
	cmd := &fakeCommands{}
	assert.Error(t, testRecorder().Record(cmd, target, nil))
	assert.Empty(t, cmd.ops)
}

func TestRecordOverlayHook(t *testing.T) {
	r := testRecorder()
	var seen *FrameTarget
	r.Overlay = func(cmd Commands, target *FrameTarget) error {
		seen = target
		cmd.SetScissor(vk.Rect2D{})
		return nil
	}
	target := testTarget()
	cmd := &fakeCommands{}
	require.NoError(t, r.Record(cmd, target, nil))
	assert.Same(t, target, seen)
	names := cmd.names()
	assert.Equal(t, []string{"draw", "setScissor", "endRenderPass", "end"}, names[len(names)-4:])
}

func TestRecordOverlayErrorClosesBuffer(t *testing.T) {
	r := testRecorder()
	r.Overlay = func(Commands, *FrameTarget) error { return errors.New("no font") }
	cmd := &fakeCommands{}
	err := r.Record(cmd, testTarget(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlay")
	names := cmd.names()
	assert.Equal(t, []string{"endRenderPass", "end"}, names[len(names)-2:])
}

func TestRecordOverlayErrorKeepsEndError(t *testing.T) {
	r := testRecorder()
	r.Overlay = func(Commands, *FrameTarget) error { return errors.New("no font") }
	cmd := &fakeCommands{endErr: errors.New("out of host memory")}
	err := r.Record(cmd, testTarget(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no font")
	assert.Contains(t, err.Error(), "out of host memory")
}

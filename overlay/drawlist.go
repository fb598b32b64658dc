package overlay

import (
	"fmt"
	"math"

	"github.com/celer/vkframe"
	"github.com/inkyblackness/imgui-go"
	vk "github.com/vulkan-go/vulkan"
)

// drawList is a copy of one ImGui command list, detached from the context
// so it can be uploaded and recorded after imgui.Render returns.
type drawList struct {
	vertices    []byte
	indices     []byte
	vertexCount int
	commands    []drawCommand
}

type drawCommand struct {
	// clip is x0, y0, x1, y1 in framebuffer pixels.
	clip     [4]float32
	elements int
	callback func()
}

type drawLists []drawList

func collectLists(data imgui.DrawData) drawLists {
	stride, _, _, _ := imgui.VertexBufferLayout()
	var out drawLists
	for _, list := range data.CommandLists() {
		vptr, vsize := list.VertexBuffer()
		iptr, isize := list.IndexBuffer()
		dl := drawList{
			vertices:    append([]byte(nil), vkframe.ToBytes(vptr, vsize)...),
			indices:     append([]byte(nil), vkframe.ToBytes(iptr, isize)...),
			vertexCount: vsize / stride,
		}
		for _, cmd := range list.Commands() {
			dc := drawCommand{elements: cmd.ElementCount()}
			if cmd.HasUserCallback() {
				cmd, list := cmd, list
				dc.callback = func() { cmd.CallUserCallback(list) }
			} else {
				r := cmd.ClipRect()
				dc.clip = [4]float32{r.X, r.Y, r.Z, r.W}
			}
			dl.commands = append(dl.commands, dc)
		}
		out = append(out, dl)
	}
	return out
}

func (l drawLists) vertexBytes() uint64 {
	var n uint64
	for _, dl := range l {
		n += uint64(len(dl.vertices))
	}
	return n
}

func (l drawLists) indexBytes() uint64 {
	var n uint64
	for _, dl := range l {
		n += uint64(len(dl.indices))
	}
	return n
}

func (l drawLists) indexCount() int {
	n := 0
	for _, dl := range l {
		for _, c := range dl.commands {
			n += c.elements
		}
	}
	return n
}

// upload packs every list back to back into buf.
func (l drawLists) upload(buf *drawBuffers) error {
	var voff, ioff uint64
	for _, dl := range l {
		if err := buf.vertices.Write(voff, dl.vertices); err != nil {
			return err
		}
		if err := buf.indices.Write(ioff, dl.indices); err != nil {
			return err
		}
		voff += uint64(len(dl.vertices))
		ioff += uint64(len(dl.indices))
	}
	return nil
}

// draw records one scissored DrawIndexed per command. Index and vertex
// offsets accumulate across lists to match upload.
func (l drawLists) draw(cmd vkframe.Commands, extent vk.Extent2D) {
	firstIndex, firstVertex := 0, 0
	for _, dl := range l {
		offset := 0
		for _, c := range dl.commands {
			if c.callback != nil {
				c.callback()
			} else if scissor, ok := clipScissor(c.clip, extent); ok {
				cmd.SetScissor(scissor)
				cmd.DrawIndexed(uint32(c.elements), uint32(firstIndex+offset), int32(firstVertex))
			}
			offset += c.elements
		}
		firstIndex += offset
		firstVertex += dl.vertexCount
	}
}

// clipScissor clamps a clip rectangle to the framebuffer. It reports false
// when nothing of the rectangle is visible.
func clipScissor(clip [4]float32, extent vk.Extent2D) (vk.Rect2D, bool) {
	x0 := math.Max(float64(clip[0]), 0)
	y0 := math.Max(float64(clip[1]), 0)
	x1 := math.Min(float64(clip[2]), float64(extent.Width))
	y1 := math.Min(float64(clip[3]), float64(extent.Height))
	if x1 <= x0 || y1 <= y0 {
		return vk.Rect2D{}, false
	}
	return vk.Rect2D{
		Offset: vk.Offset2D{X: int32(x0), Y: int32(y0)},
		Extent: vk.Extent2D{Width: uint32(x1 - x0), Height: uint32(y1 - y0)},
	}, true
}

func formatStats(s vkframe.FrameStats) string {
	return fmt.Sprintf("frames %d\nslot %d\nimages %d\nextent %dx%d\nmodels %d\ntextures %d",
		s.Frames, s.Slot, s.ImageCount, s.Extent.Width, s.Extent.Height, s.Models, s.Textures)
}

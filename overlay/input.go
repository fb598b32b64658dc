package overlay

import (
	"math"

	"github.com/inkyblackness/imgui-go"
	"github.com/vulkan-go/glfw/v3.3/glfw"
)

var glfwButtonIndexByID = map[glfw.MouseButton]int{
	glfw.MouseButton1: 0,
	glfw.MouseButton2: 1,
	glfw.MouseButton3: 2,
}

var glfwButtonIDByIndex = [3]glfw.MouseButton{glfw.MouseButton1, glfw.MouseButton2, glfw.MouseButton3}

// Input feeds glfw window events to ImGui.
type Input struct {
	io     imgui.IO
	window *glfw.Window

	time             float64
	mouseJustPressed [3]bool
	wantMouse        bool
	wantKeyboard     bool
}

// Attach installs key, char, scroll and mouse button callbacks on window.
// Callbacks the application installed before are replaced.
func (o *Overlay) Attach(window *glfw.Window) *Input {
	in := &Input{io: o.io, window: window}
	in.setKeyMapping()
	window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		in.keyChange(key, action)
	})
	window.SetCharCallback(func(_ *glfw.Window, char rune) {
		in.charChange(char)
	})
	window.SetScrollCallback(func(_ *glfw.Window, x, y float64) {
		in.scrollChange(x, y)
	})
	window.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		in.mouseButtonChange(button, action)
	})
	o.input = in
	return in
}

// WantsMouse reports whether ImGui is using the mouse this frame.
func (in *Input) WantsMouse() bool {
	return in.wantMouse
}

func (in *Input) WantsKeyboard() bool {
	return in.wantKeyboard
}

// NewFrame polls the cursor and buttons and advances ImGui's clock.
func (in *Input) NewFrame() {
	in.wantMouse = in.io.WantCaptureMouse()
	in.wantKeyboard = in.io.WantCaptureKeyboard()

	now := glfw.GetTime()
	if in.time > 0 {
		in.io.SetDeltaTime(float32(now - in.time))
	}
	in.time = now

	if in.window.GetAttrib(glfw.Focused) != 0 {
		x, y := in.window.GetCursorPos()
		in.io.SetMousePosition(imgui.Vec2{X: float32(x), Y: float32(y)})
	} else {
		in.io.SetMousePosition(imgui.Vec2{X: -math.MaxFloat32, Y: -math.MaxFloat32})
	}

	for i := range in.mouseJustPressed {
		down := in.mouseJustPressed[i] || in.window.GetMouseButton(glfwButtonIDByIndex[i]) == glfw.Press
		in.io.SetMouseButtonDown(i, down)
		in.mouseJustPressed[i] = false
	}
}

func (in *Input) keyChange(key glfw.Key, action glfw.Action) {
	if !in.wantKeyboard {
		return
	}
	switch action {
	case glfw.Press:
		in.io.KeyPress(int(key))
	case glfw.Release:
		in.io.KeyRelease(int(key))
	}
	// Modifiers are not reliable across systems
	in.io.KeyCtrl(int(glfw.KeyLeftControl), int(glfw.KeyRightControl))
	in.io.KeyShift(int(glfw.KeyLeftShift), int(glfw.KeyRightShift))
	in.io.KeyAlt(int(glfw.KeyLeftAlt), int(glfw.KeyRightAlt))
	in.io.KeySuper(int(glfw.KeyLeftSuper), int(glfw.KeyRightSuper))
}

func (in *Input) charChange(char rune) {
	if in.wantKeyboard {
		in.io.AddInputCharacters(string(char))
	}
}

func (in *Input) scrollChange(x, y float64) {
	if in.wantMouse {
		in.io.AddMouseWheelDelta(float32(x), float32(y))
	}
}

func (in *Input) mouseButtonChange(button glfw.MouseButton, action glfw.Action) {
	if i, ok := glfwButtonIndexByID[button]; ok && action == glfw.Press {
		in.mouseJustPressed[i] = true
	}
}

func (in *Input) setKeyMapping() {
	keys := map[int]glfw.Key{
		imgui.KeyTab:        glfw.KeyTab,
		imgui.KeyLeftArrow:  glfw.KeyLeft,
		imgui.KeyRightArrow: glfw.KeyRight,
		imgui.KeyUpArrow:    glfw.KeyUp,
		imgui.KeyDownArrow:  glfw.KeyDown,
		imgui.KeyPageUp:     glfw.KeyPageUp,
		imgui.KeyPageDown:   glfw.KeyPageDown,
		imgui.KeyHome:       glfw.KeyHome,
		imgui.KeyEnd:        glfw.KeyEnd,
		imgui.KeyInsert:     glfw.KeyInsert,
		imgui.KeyDelete:     glfw.KeyDelete,
		imgui.KeyBackspace:  glfw.KeyBackspace,
		imgui.KeySpace:      glfw.KeySpace,
		imgui.KeyEnter:      glfw.KeyEnter,
		imgui.KeyEscape:     glfw.KeyEscape,
		imgui.KeyA:          glfw.KeyA,
		imgui.KeyC:          glfw.KeyC,
		imgui.KeyV:          glfw.KeyV,
		imgui.KeyX:          glfw.KeyX,
		imgui.KeyY:          glfw.KeyY,
		imgui.KeyZ:          glfw.KeyZ,
	}
	for imguiKey, key := range keys {
		in.io.KeyMap(imguiKey, int(key))
	}
}

package vkframe

//go:generate glslangValidator -V Shaders/geometry.vert -o Shaders/geometry.vert.spv
//go:generate glslangValidator -V Shaders/geometry.frag -o Shaders/geometry.frag.spv
//go:generate glslangValidator -V Shaders/composition.vert -o Shaders/composition.vert.spv
//go:generate glslangValidator -V Shaders/composition.frag -o Shaders/composition.frag.spv
//go:generate glslangValidator -V Shaders/overlay.vert -o Shaders/overlay.vert.spv
//go:generate glslangValidator -V Shaders/overlay.frag -o Shaders/overlay.frag.spv

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/sync/errgroup"
)

const spirvMagic = 0x07230203

type ShaderModule struct {
	Device         *Device
	Name           string
	VKShaderModule vk.ShaderModule
}

// ShaderPath returns the location of the compiled blob for name.
func ShaderPath(dir, name string) string {
	return filepath.Join(dir, name+".spv")
}

// ReadShaderBlob reads a SPIR-V blob and checks it looks like one. The
// contents are otherwise passed to the driver untouched.
func ReadShaderBlob(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrResourceNotFound, "shader %s", path)
		}
		return nil, errors.Wrapf(err, "read shader %s", path)
	}
	if err := validateSPIRV(data); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return data, nil
}

func validateSPIRV(data []byte) error {
	if len(data) < 20 || len(data)%4 != 0 {
		return errors.Wrapf(ErrInvalidShader, "%d bytes is not a whole number of words", len(data))
	}
	if binary.LittleEndian.Uint32(data) != spirvMagic {
		return errors.Wrap(ErrInvalidShader, "bad magic number")
	}
	return nil
}

func (d *Device) CreateShaderModule(name string, code []byte) (*ShaderModule, error) {
	var module vk.ShaderModule
	err := vkError(vk.CreateShaderModule(d.VKDevice, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &module), "create shader module "+name)
	if err != nil {
		return nil, err
	}
	return &ShaderModule{Device: d, Name: name, VKShaderModule: module}, nil
}

// LoadShaderModules reads <dir>/<name>.spv for every name in parallel and
// creates a module for each. Either all modules are returned or none.
func (d *Device) LoadShaderModules(dir string, names ...string) (map[string]*ShaderModule, error) {
	blobs := make([][]byte, len(names))
	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			data, err := ReadShaderBlob(ShaderPath(dir, name))
			if err != nil {
				return err
			}
			blobs[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	modules := make(map[string]*ShaderModule, len(names))
	for i, name := range names {
		m, err := d.CreateShaderModule(name, blobs[i])
		if err != nil {
			DestroyShaderModules(modules)
			return nil, err
		}
		modules[name] = m
	}
	Logger().Debug("shader modules loaded", "dir", dir, "count", len(modules))
	return modules, nil
}

// DestroyShaderModules destroys every module in the map.
func DestroyShaderModules(modules map[string]*ShaderModule) {
	for _, m := range modules {
		m.Destroy()
	}
}

func (s *ShaderModule) VKPipelineShaderStageCreateInfo(stage vk.ShaderStageFlagBits, entryPoint string) vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: s.VKShaderModule,
		PName:  safeString(entryPoint),
	}
}

func (s *ShaderModule) Destroy() {
	vk.DestroyShaderModule(s.Device.VKDevice, s.VKShaderModule, nil)
}

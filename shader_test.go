package vkframe

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spirvHeader(words int) []byte {
	data := make([]byte, words*4)
	binary.LittleEndian.PutUint32(data, spirvMagic)
	return data
}

func TestShaderPath(t *testing.T) {
	assert.Equal(t, filepath.Join("Shaders", "geometry.vert.spv"), ShaderPath("Shaders", "geometry.vert"))
}

func TestReadShaderBlob(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.spv")
	require.NoError(t, os.WriteFile(good, spirvHeader(8), 0o644))
	data, err := ReadShaderBlob(good)
	require.NoError(t, err)
	assert.Len(t, data, 32)

	unaligned := filepath.Join(dir, "unaligned.spv")
	require.NoError(t, os.WriteFile(unaligned, append(spirvHeader(8), 0), 0o644))
	_, err = ReadShaderBlob(unaligned)
	assert.True(t, errors.Is(err, ErrInvalidShader))

	glsl := filepath.Join(dir, "source.spv")
	require.NoError(t, os.WriteFile(glsl, []byte("#version 450\nvoid main() {}\n...."), 0o644))
	_, err = ReadShaderBlob(glsl)
	assert.True(t, errors.Is(err, ErrInvalidShader))

	_, err = ReadShaderBlob(filepath.Join(dir, "missing.spv"))
	assert.True(t, errors.Is(err, ErrResourceNotFound))
	assert.False(t, IsRecoverable(err))
}

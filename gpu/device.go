// Package gpu owns the glitch program and the source/feedback textures on top
// of a minimal Device abstraction, so the same pipeline runs against OpenGL
// or the software rasterizer.
package gpu

// Stage identifies a shader stage.
type Stage int

const (
	VertexStage Stage = iota
	FragmentStage
)

func (s Stage) String() string {
	switch s {
	case VertexStage:
		return "vertex"
	case FragmentStage:
		return "fragment"
	default:
		return "unknown"
	}
}

// Device is the subset of a GL-style context the pipeline drives. All calls
// must be made from the goroutine that owns the context.
//
// Textures are RGBA8 with linear filtering and clamp-to-edge wrapping. Row 0
// of pixel data is the bottom row of the image.
type Device interface {
	// CompileShader returns the shader handle, the info log and whether
	// compilation succeeded.
	CompileShader(stage Stage, source string) (uint32, string, bool)
	LinkProgram(vertex, fragment uint32) (uint32, string, bool)
	DeleteShader(id uint32)
	DeleteProgram(id uint32)
	UseProgram(id uint32)

	// UniformLocation returns -1 when the program has no active uniform
	// with that name.
	UniformLocation(program uint32, name string) int32
	Uniform1f(location int32, v float32)
	Uniform2f(location int32, x, y float32)
	Uniform1i(location int32, v int32)

	CreateTexture() (uint32, error)
	// TexImage (re)defines the storage of a texture. A nil pix fills it
	// with zeros.
	TexImage(id uint32, width, height int, pix []byte) error
	BindTexture(unit int, id uint32)
	DeleteTexture(id uint32)

	Viewport(width, height int)
	// DrawQuad draws a full screen quad into the current draw target.
	DrawQuad()
	// CopyToTexture copies the draw target into the texture, which must
	// already have width x height storage.
	CopyToTexture(id uint32, width, height int)
	ReadPixels(width, height int) []byte

	// Err reports a lost context or a failed operation since creation.
	Err() error
}

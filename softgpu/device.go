// Package softgpu is a CPU implementation of gpu.Device. Draws execute a Go
// kernel instead of the GLSL source, so rendering works without a display or
// a GPU driver.
package softgpu

import (
	"regexp"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/richinsley/goglitch/effect"
	"github.com/richinsley/goglitch/gpu"
)

// ErrContextLost is reported by Err after LoseContext.
var ErrContextLost = errors.New("software context lost")

// MaxUnits is the number of texture units.
const MaxUnits = 8

// Kernel renders a width x height RGBA8 target from the current uniforms and
// the textures bound to each unit. Unbound units are nil.
type Kernel func(u effect.Uniforms, units []effect.Sampler, width, height int) []byte

// GlitchKernel executes the glitch program.
func GlitchKernel(u effect.Uniforms, units []effect.Sampler, width, height int) []byte {
	return effect.Bind(u, units[0], units[1]).Render(width, height)
}

var uniformDecl = regexp.MustCompile(`(?m)^\s*uniform\s+(?:(?:lowp|mediump|highp)\s+)?(\w+)\s+(\w+)\s*;`)

type shaderObject struct {
	stage    gpu.Stage
	uniforms []string
}

type program struct {
	names  map[string]int32
	values map[int32][2]float32
}

func (p *program) Float(name string) float32 {
	loc, ok := p.names[name]
	if !ok {
		return 0
	}
	return p.values[loc][0]
}

func (p *program) Vec2(name string) mgl32.Vec2 {
	loc, ok := p.names[name]
	if !ok {
		return mgl32.Vec2{}
	}
	v := p.values[loc]
	return mgl32.Vec2{v[0], v[1]}
}

// Device is a single-threaded software context. Its draw target is an RGBA8
// buffer sized by Viewport.
type Device struct {
	kernel Kernel
	// MaxTextureSize limits texture dimensions; 0 means unlimited.
	MaxTextureSize int

	nextID   uint32
	shaders  map[uint32]*shaderObject
	programs map[uint32]*program
	textures map[uint32]*effect.Image
	units    [MaxUnits]uint32
	current  *program

	width, height int
	target        []byte
	err           error
	lost          bool
}

var _ gpu.Device = (*Device)(nil)

// New returns a device whose draws run kernel.
func New(kernel Kernel) *Device {
	return &Device{
		kernel:   kernel,
		shaders:  make(map[uint32]*shaderObject),
		programs: make(map[uint32]*program),
		textures: make(map[uint32]*effect.Image),
	}
}

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

func (d *Device) fail(err error) {
	if d.err == nil {
		d.err = err
		logrus.WithError(err).Warn("Software device error")
	}
}

// LoseContext makes every later allocation and draw fail, as a GL context
// loss would.
func (d *Device) LoseContext() {
	d.lost = true
	d.fail(ErrContextLost)
}

func (d *Device) CompileShader(stage gpu.Stage, source string) (uint32, string, bool) {
	id := d.id()
	if d.lost {
		return id, ErrContextLost.Error(), false
	}
	if !strings.Contains(source, "void main") {
		return id, "ERROR: 0:1: missing entry point 'main'", false
	}
	obj := &shaderObject{stage: stage}
	for _, m := range uniformDecl.FindAllStringSubmatch(source, -1) {
		obj.uniforms = append(obj.uniforms, m[2])
	}
	d.shaders[id] = obj
	return id, "", true
}

func (d *Device) LinkProgram(vertex, fragment uint32) (uint32, string, bool) {
	id := d.id()
	vs, fs := d.shaders[vertex], d.shaders[fragment]
	if vs == nil || fs == nil || vs.stage != gpu.VertexStage || fs.stage != gpu.FragmentStage {
		return id, "ERROR: program requires one vertex and one fragment shader", false
	}
	p := &program{names: make(map[string]int32), values: make(map[int32][2]float32)}
	for _, name := range append(append([]string(nil), vs.uniforms...), fs.uniforms...) {
		if _, ok := p.names[name]; !ok {
			p.names[name] = int32(len(p.names))
		}
	}
	d.programs[id] = p
	return id, "", true
}

func (d *Device) DeleteShader(id uint32) { delete(d.shaders, id) }

func (d *Device) DeleteProgram(id uint32) {
	if p := d.programs[id]; p != nil && p == d.current {
		d.current = nil
	}
	delete(d.programs, id)
}

func (d *Device) UseProgram(id uint32) { d.current = d.programs[id] }

func (d *Device) UniformLocation(prog uint32, name string) int32 {
	p := d.programs[prog]
	if p == nil {
		return -1
	}
	if loc, ok := p.names[name]; ok {
		return loc
	}
	return -1
}

func (d *Device) Uniform1f(loc int32, v float32) {
	if d.current != nil && loc >= 0 {
		d.current.values[loc] = [2]float32{v, 0}
	}
}

func (d *Device) Uniform2f(loc int32, x, y float32) {
	if d.current != nil && loc >= 0 {
		d.current.values[loc] = [2]float32{x, y}
	}
}

func (d *Device) Uniform1i(loc int32, v int32) { d.Uniform1f(loc, float32(v)) }

func (d *Device) CreateTexture() (uint32, error) {
	if d.lost {
		return 0, ErrContextLost
	}
	id := d.id()
	d.textures[id] = &effect.Image{}
	return id, nil
}

func (d *Device) TexImage(id uint32, width, height int, pix []byte) error {
	if d.lost {
		return ErrContextLost
	}
	im := d.textures[id]
	if im == nil {
		return errors.Errorf("texture %d does not exist", id)
	}
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid texture size %dx%d", width, height)
	}
	if d.MaxTextureSize > 0 && (width > d.MaxTextureSize || height > d.MaxTextureSize) {
		return errors.Errorf("texture size %dx%d exceeds maximum %d", width, height, d.MaxTextureSize)
	}
	if pix != nil && len(pix) != width*height*4 {
		return errors.Errorf("texture data is %d bytes, want %d", len(pix), width*height*4)
	}
	n := width * height * 4
	if im.Width != width || im.Height != height || len(im.Pix) != n {
		im.Pix = make([]byte, n)
		im.Width, im.Height = width, height
	}
	if pix == nil {
		clear(im.Pix)
	} else {
		copy(im.Pix, pix)
	}
	return nil
}

func (d *Device) BindTexture(unit int, id uint32) {
	if unit < 0 || unit >= MaxUnits {
		d.fail(errors.Errorf("texture unit %d out of range", unit))
		return
	}
	d.units[unit] = id
}

func (d *Device) DeleteTexture(id uint32) {
	delete(d.textures, id)
	for i, u := range d.units {
		if u == id {
			d.units[i] = 0
		}
	}
}

func (d *Device) Viewport(width, height int) {
	if width == d.width && height == d.height {
		return
	}
	d.width, d.height = width, height
	d.target = make([]byte, width*height*4)
}

func (d *Device) DrawQuad() {
	if d.lost {
		return
	}
	if d.current == nil {
		d.fail(errors.New("draw without a program in use"))
		return
	}
	units := make([]effect.Sampler, MaxUnits)
	for i, id := range d.units {
		if im := d.textures[id]; im != nil && len(im.Pix) > 0 {
			units[i] = im
		}
	}
	d.target = d.kernel(d.current, units, d.width, d.height)
}

func (d *Device) CopyToTexture(id uint32, width, height int) {
	if d.lost {
		return
	}
	im := d.textures[id]
	if im == nil || im.Width != width || im.Height != height {
		d.fail(errors.Errorf("copy target %d is not %dx%d", id, width, height))
		return
	}
	if width != d.width || height != d.height {
		d.fail(errors.Errorf("copy of %dx%d from a %dx%d target", width, height, d.width, d.height))
		return
	}
	copy(im.Pix, d.target)
}

// ReadPixels returns a copy of the draw target.
func (d *Device) ReadPixels(width, height int) []byte {
	if width != d.width || height != d.height {
		return nil
	}
	return append([]byte(nil), d.target...)
}

func (d *Device) Err() error { return d.err }

// TextureData returns a copy of a texture's pixels and its size.
func (d *Device) TextureData(id uint32) ([]byte, int, int) {
	im := d.textures[id]
	if im == nil {
		return nil, 0, 0
	}
	return append([]byte(nil), im.Pix...), im.Width, im.Height
}

// BoundTexture returns the texture attached to unit.
func (d *Device) BoundTexture(unit int) uint32 {
	if unit < 0 || unit >= MaxUnits {
		return 0
	}
	return d.units[unit]
}

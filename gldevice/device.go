// Package gldevice implements gpu.Device on an OpenGL 4.1 core context.
// Fragment shaders are authored in GLSL ES 3.00 and translated to desktop
// GLSL before compilation; uniform lookups go through the translator's name
// mapping.
package gldevice

import (
	"context"
	"strings"
	"sync"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/richinsley/goglitch/gpu"
	"github.com/richinsley/goglitch/translator"
)

var glInitOnce sync.Once

// scratchUnit is the texture unit used for uploads and copies so the units
// bound for drawing stay untouched.
const scratchUnit = 15

var quadVertices = []float32{
	-1.0, 1.0, -1.0, -1.0, 1.0, -1.0,
	-1.0, 1.0, 1.0, -1.0, 1.0, 1.0,
}

type texture struct {
	width, height int
}

// Device renders into an offscreen framebuffer sized by Viewport. Present
// blits it to the window.
type Device struct {
	translator *translator.Translator

	quadVAO uint32
	quadVBO uint32

	fbo       uint32
	targetTex uint32
	width     int
	height    int

	// translated fragment shaders, keyed by shader and then by program once
	// linked
	shaderNames  map[uint32]*translator.Fragment
	programNames map[uint32]*translator.Fragment
	textures     map[uint32]*texture

	err error
}

var _ gpu.Device = (*Device)(nil)

// New initializes the GL bindings for the current context and creates the
// quad geometry. The context must be current on the calling thread.
func New(ctx context.Context) (*Device, error) {
	var initErr error
	glInitOnce.Do(func() {
		initErr = gl.Init()
	})
	if initErr != nil {
		return nil, errors.Wrap(initErr, "failed to initialize OpenGL")
	}

	tr, err := translator.Get(ctx)
	if err != nil {
		return nil, err
	}

	d := &Device{
		translator:   tr,
		shaderNames:  make(map[uint32]*translator.Fragment),
		programNames: make(map[uint32]*translator.Fragment),
		textures:     make(map[uint32]*texture),
	}

	gl.GenVertexArrays(1, &d.quadVAO)
	gl.GenBuffers(1, &d.quadVBO)
	gl.BindVertexArray(d.quadVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.quadVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(quadVertices)*4, gl.Ptr(quadVertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 2*4, gl.PtrOffset(0))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	gl.GenFramebuffers(1, &d.fbo)
	gl.GenTextures(1, &d.targetTex)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)

	logrus.WithFields(logrus.Fields{
		"function": "gldevice.New",
		"version":  gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer": gl.GoStr(gl.GetString(gl.RENDERER)),
	}).Info("OpenGL device ready")
	return d, d.checkError("initialize device")
}

func (d *Device) checkError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		err := errors.Errorf("%s: GL error 0x%x", op, code)
		if d.err == nil {
			d.err = err
		}
		return err
	}
	return nil
}

func (d *Device) CompileShader(stage gpu.Stage, source string) (uint32, string, bool) {
	shaderType := uint32(gl.VERTEX_SHADER)
	var translated *translator.Fragment
	if stage == gpu.FragmentStage {
		shaderType = gl.FRAGMENT_SHADER
		var err error
		translated, err = d.translator.TranslateFragment(source)
		if err != nil {
			return 0, err.Error(), false
		}
		source = translated.Code
	}

	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		return shader, logText, false
	}
	if translated != nil {
		d.shaderNames[shader] = translated
	}
	return shader, "", true
}

func (d *Device) LinkProgram(vertex, fragment uint32) (uint32, string, bool) {
	program := gl.CreateProgram()
	gl.AttachShader(program, vertex)
	gl.AttachShader(program, fragment)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		return program, log, false
	}
	d.programNames[program] = d.shaderNames[fragment]
	return program, "", true
}

func (d *Device) DeleteShader(id uint32) {
	if id == 0 {
		return
	}
	gl.DeleteShader(id)
	delete(d.shaderNames, id)
}

func (d *Device) DeleteProgram(id uint32) {
	if id == 0 {
		return
	}
	gl.DeleteProgram(id)
	delete(d.programNames, id)
}

func (d *Device) UseProgram(id uint32) { gl.UseProgram(id) }

func (d *Device) UniformLocation(program uint32, name string) int32 {
	mapped := name
	if f := d.programNames[program]; f != nil {
		if _, ok := f.Names[name]; !ok {
			return -1
		}
		mapped = f.MappedName(name)
	}
	return gl.GetUniformLocation(program, gl.Str(mapped+"\x00"))
}

func (d *Device) Uniform1f(location int32, v float32)    { gl.Uniform1f(location, v) }
func (d *Device) Uniform2f(location int32, x, y float32) { gl.Uniform2f(location, x, y) }
func (d *Device) Uniform1i(location int32, v int32)      { gl.Uniform1i(location, v) }

func (d *Device) CreateTexture() (uint32, error) {
	var id uint32
	gl.GenTextures(1, &id)
	if id == 0 {
		return 0, errors.New("glGenTextures returned no texture")
	}
	gl.ActiveTexture(gl.TEXTURE0 + scratchUnit)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	d.textures[id] = &texture{}
	return id, d.checkError("create texture")
}

func (d *Device) TexImage(id uint32, width, height int, pix []byte) error {
	tex := d.textures[id]
	if tex == nil {
		return errors.Errorf("texture %d does not exist", id)
	}
	if pix == nil {
		// Storage defined with nil data has undefined contents.
		pix = make([]byte, width*height*4)
	}
	gl.ActiveTexture(gl.TEXTURE0 + scratchUnit)
	gl.BindTexture(gl.TEXTURE_2D, id)
	if tex.width == width && tex.height == height {
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
	} else {
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
		tex.width, tex.height = width, height
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return d.checkError("upload texture")
}

func (d *Device) BindTexture(unit int, id uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, id)
}

func (d *Device) DeleteTexture(id uint32) {
	gl.DeleteTextures(1, &id)
	delete(d.textures, id)
}

// Viewport sizes the offscreen target, reallocating it when the size
// changes.
func (d *Device) Viewport(width, height int) {
	if width != d.width || height != d.height {
		gl.ActiveTexture(gl.TEXTURE0 + scratchUnit)
		gl.BindTexture(gl.TEXTURE_2D, d.targetTex)
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
		gl.BindTexture(gl.TEXTURE_2D, 0)

		gl.BindFramebuffer(gl.FRAMEBUFFER, d.fbo)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, d.targetTex, 0)
		if gl.CheckFramebufferStatus(gl.FRAMEBUFFER) != gl.FRAMEBUFFER_COMPLETE && d.err == nil {
			d.err = errors.Errorf("offscreen framebuffer incomplete at %dx%d", width, height)
		}
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		d.width, d.height = width, height
	}
	gl.Viewport(0, 0, int32(width), int32(height))
}

func (d *Device) DrawQuad() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, d.fbo)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.BindVertexArray(d.quadVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
	gl.BindVertexArray(0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	d.checkError("draw")
}

func (d *Device) CopyToTexture(id uint32, width, height int) {
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, d.fbo)
	gl.ActiveTexture(gl.TEXTURE0 + scratchUnit)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.CopyTexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, 0, 0, int32(width), int32(height))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	d.checkError("copy to texture")
}

func (d *Device) ReadPixels(width, height int) []byte {
	pix := make([]byte, width*height*4)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, d.fbo)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	if d.checkError("read pixels") != nil {
		return nil
	}
	return pix
}

// Present blits the offscreen target to the window's framebuffer.
func (d *Device) Present(windowWidth, windowHeight int) {
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, d.fbo)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
	gl.BlitFramebuffer(0, 0, int32(d.width), int32(d.height),
		0, 0, int32(windowWidth), int32(windowHeight), gl.COLOR_BUFFER_BIT, gl.LINEAR)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

func (d *Device) Err() error { return d.err }

// Destroy releases the quad geometry and the offscreen target.
func (d *Device) Destroy() {
	gl.DeleteFramebuffers(1, &d.fbo)
	gl.DeleteTextures(1, &d.targetTex)
	gl.DeleteBuffers(1, &d.quadVBO)
	gl.DeleteVertexArrays(1, &d.quadVAO)
}

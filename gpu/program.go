package gpu

import (
	"github.com/sirupsen/logrus"

	"github.com/richinsley/goglitch/params"
	"github.com/richinsley/goglitch/shader"
)

// slot indexes the per-frame uniforms in a program's location table.
type slot int

const (
	slotResolution slot = iota
	slotTime
	slotDryWet
	slotAmount
	slotGlitch
	slotAudio
	slotEffect
	slotTrail
	numSlots
)

var slotNames = [numSlots]string{
	slotResolution: shader.UResolution,
	slotTime:       shader.UTime,
	slotDryWet:     shader.UDryWet,
	slotAmount:     shader.UAmount,
	slotGlitch:     shader.UGlitch,
	slotAudio:      shader.UAudio,
	slotEffect:     shader.UEffect,
	slotTrail:      shader.UTrail,
}

// Program is a linked vertex/fragment pair with its uniform locations
// resolved once at construction.
type Program struct {
	dev     Device
	id      uint32
	handles map[string]int32
	table   [numSlots]int32
}

// Compile builds and links the program. Shader objects are released once
// linked; nothing is left allocated on failure.
func Compile(dev Device, vertexSource, fragmentSource string) (*Program, error) {
	vs, log, ok := dev.CompileShader(VertexStage, vertexSource)
	if !ok {
		dev.DeleteShader(vs)
		return nil, &ShaderCompileError{Stage: VertexStage, Log: log}
	}
	fs, log, ok := dev.CompileShader(FragmentStage, fragmentSource)
	if !ok {
		dev.DeleteShader(vs)
		dev.DeleteShader(fs)
		return nil, &ShaderCompileError{Stage: FragmentStage, Log: log}
	}

	id, log, ok := dev.LinkProgram(vs, fs)
	dev.DeleteShader(vs)
	dev.DeleteShader(fs)
	if !ok {
		dev.DeleteProgram(id)
		return nil, &ProgramLinkError{Log: log}
	}

	p := &Program{dev: dev, id: id, handles: make(map[string]int32, len(shader.Uniforms))}
	for _, name := range shader.Uniforms {
		p.handles[name] = dev.UniformLocation(id, name)
	}
	for s := slot(0); s < numSlots; s++ {
		p.table[s] = p.handles[slotNames[s]]
	}
	return p, nil
}

// ID returns the device handle of the program.
func (p *Program) ID() uint32 { return p.id }

// ResolveBindings returns the locations of names. Names the program does not
// expose are left out of the map and reported in a *BindingNotFoundError.
func (p *Program) ResolveBindings(names ...string) (map[string]int32, error) {
	found := make(map[string]int32, len(names))
	var missing []string
	for _, name := range names {
		loc, ok := p.handles[name]
		if !ok {
			loc = p.dev.UniformLocation(p.id, name)
			p.handles[name] = loc
		}
		if loc < 0 {
			missing = append(missing, name)
			continue
		}
		found[name] = loc
	}
	if len(missing) > 0 {
		return found, &BindingNotFoundError{Names: missing}
	}
	return found, nil
}

// BindConstants assigns the sampler units and the uniforms that never change
// during a session.
func (p *Program) BindConstants(psy float32) {
	p.dev.UseProgram(p.id)
	if loc := p.handles[shader.USource]; loc >= 0 {
		p.dev.Uniform1i(loc, shader.SourceUnit)
	}
	if loc := p.handles[shader.UFeedback]; loc >= 0 {
		p.dev.Uniform1i(loc, shader.FeedbackUnit)
	}
	if loc := p.handles[shader.UPsy]; loc >= 0 {
		p.dev.Uniform1f(loc, psy)
	}
}

// BindParameters selects the program and writes the snapshot into its
// uniforms. Uniforms the program does not expose are skipped.
func (p *Program) BindParameters(s params.Snapshot) {
	p.dev.UseProgram(p.id)
	if loc := p.table[slotResolution]; loc >= 0 {
		p.dev.Uniform2f(loc, float32(s.ViewportWidth), float32(s.ViewportHeight))
	}
	set := func(sl slot, v float32) {
		if loc := p.table[sl]; loc >= 0 {
			p.dev.Uniform1f(loc, v)
		}
	}
	set(slotTime, float32(s.Elapsed))
	set(slotDryWet, s.DryWet)
	set(slotAmount, s.Amount)
	set(slotGlitch, s.Glitch)
	set(slotAudio, s.AudioLevel)
	set(slotEffect, s.Mode.Uniform())
	set(slotTrail, s.Trail)
}

// Destroy releases the program. It is safe to call more than once.
func (p *Program) Destroy() {
	if p.id == 0 {
		return
	}
	p.dev.DeleteProgram(p.id)
	logrus.WithField("program", p.id).Debug("Deleted glitch program")
	p.id = 0
}

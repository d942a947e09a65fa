// Package translator converts GLSL ES 3.00 fragment shaders into desktop
// GLSL for the OpenGL device.
package translator

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	gst "github.com/richinsley/goshadertranslator"
)

var (
	sharedOnce sync.Once
	shared     *Translator
	sharedErr  error
)

// Translator serializes access to one goshadertranslator instance.
type Translator struct {
	mu sync.Mutex
	t  *gst.ShaderTranslator
}

// Fragment is a translated fragment shader.
type Fragment struct {
	Code string
	// Names maps each source uniform name to its name in Code.
	Names map[string]string
}

// Get returns the process-wide translator, creating it on first use.
func Get(ctx context.Context) (*Translator, error) {
	sharedOnce.Do(func() {
		t, err := gst.NewShaderTranslator(ctx)
		if err != nil {
			sharedErr = errors.Wrap(err, "failed to create shader translator")
			return
		}
		shared = &Translator{t: t}
	})
	return shared, sharedErr
}

// TranslateFragment translates a WebGL2 fragment shader to GLSL 4.10.
func (tr *Translator) TranslateFragment(source string) (*Fragment, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	out, err := tr.t.TranslateShader(source, "fragment", gst.ShaderSpecWebGL2, gst.OutputFormatGLSL410)
	if err != nil {
		return nil, errors.Wrap(err, "fragment shader translation failed")
	}
	f := &Fragment{Code: out.Code, Names: make(map[string]string, len(out.Variables))}
	for name, v := range out.Variables {
		f.Names[name] = v.MappedName
	}
	return f, nil
}

// MappedName returns the translated name of a uniform, or name itself when
// the translator did not rename it.
func (f *Fragment) MappedName(name string) string {
	if mapped, ok := f.Names[name]; ok && mapped != "" {
		return mapped
	}
	return name
}

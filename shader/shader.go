package shader

// Uniform names shared by the GLSL program, the GPU program manager and the
// CPU evaluator.
const (
	USource     = "u_tex"
	UFeedback   = "u_prevTex"
	UResolution = "u_resolution"
	UTime       = "u_time"
	UDryWet     = "u_dryWet"
	UAmount     = "u_amount"
	UGlitch     = "u_glitch"
	UAudio      = "u_audio"
	UEffect     = "u_effect"
	UPsy        = "u_psy"
	UTrail      = "u_trail"
)

// Texture units the samplers are bound to.
const (
	SourceUnit   = 0
	FeedbackUnit = 1
)

// Uniforms lists every uniform the glitch program declares.
var Uniforms = []string{
	USource, UFeedback, UResolution, UTime, UDryWet, UAmount,
	UGlitch, UAudio, UEffect, UPsy, UTrail,
}

// ────────────────────────────────── Desktop GL ──────────────────────────────────

// The fragment stage derives uv from gl_FragCoord, so the quad needs no
// varyings and the translated fragment shader links against this untranslated
// vertex shader.
const vertexShaderSourceGL = `#version 410 core
layout (location = 0) in vec2 in_vert;
void main() {
    gl_Position = vec4(in_vert, 0.0, 1.0);
}
`

// ──────────────────────────────── WebGL2 / GLES ─────────────────────────────────

const vertexShaderSourceGLES = `#version 300 es
layout (location = 0) in vec2 in_vert;
void main() {
    gl_Position = vec4(in_vert, 0.0, 1.0);
}
`

// glitchFragmentShaderSource is authored once as GLSL ES 3.00. Desktop
// backends translate it before compiling.
const glitchFragmentShaderSource = `#version 300 es
precision highp float;

uniform sampler2D u_tex;
uniform sampler2D u_prevTex;
uniform vec2  u_resolution;
uniform float u_time;
uniform float u_dryWet;
uniform float u_amount;
uniform float u_glitch;
uniform float u_audio;
uniform float u_effect;
uniform float u_psy;
uniform float u_trail;

out vec4 fragColor;

float hash(vec2 p) { return fract(sin(dot(p, vec2(127.1, 311.7))) * 43758.5453); }

vec3 filmGrain(vec2 uv, float t) {
    float n = hash(uv * (t * 0.1 + 1.0));
    return vec3(n * 0.12);
}

vec3 chromaSplit(sampler2D tex, vec2 uv, vec2 dir, float amount) {
    vec2 o = dir * amount;
    return vec3(texture(tex, uv + o).r, texture(tex, uv).g, texture(tex, uv - o).b);
}

vec3 tear(vec2 uv, float time) {
    float px = mix(1.0, 120.0, clamp(u_amount * 0.85 + u_audio * 0.25, 0.0, 1.0));
    vec2 uvPix = floor(uv * px) / px;

    float lines = mix(40.0, 400.0, u_glitch);
    float linePhase = fract(uv.y * lines + time * (2.0 + u_audio * 6.0));
    float tearMask = step(linePhase, u_glitch * 0.7 + u_audio * 0.5);
    float randShift = (hash(vec2(uv.y * 100.0, time)) - 0.5) * (0.06 * (u_glitch + u_audio));
    vec2 uvGlitch = uvPix + vec2(tearMask * randShift, 0.0);

    float w = u_amount * 0.8 + u_audio * 0.6;
    uvGlitch.x += 0.015 * w * sin(uvGlitch.y * 20.0 + time * 2.5);
    uvGlitch.y += 0.010 * w * cos(uvGlitch.x * 18.0 + time * 2.0);

    float off = 0.007 * (u_amount * 0.7 + u_audio * 0.5);
    return chromaSplit(u_tex, uvGlitch, normalize(vec2(0.8, 0.6)), off) + filmGrain(uv + time, time);
}

vec3 kaleidoscope(vec2 uv, float time) {
    vec2 p = uv * 2.0 - 1.0;
    float r = length(p);
    float a = atan(p.y, p.x);
    float warp = (sin(r * 12.0 - time * 3.0) + cos((r + time * 0.5) * 9.0)) * (0.25 * u_psy + 0.25 * u_audio);
    a += warp + 0.35 * u_amount;
    r += 0.12 * sin(a * 8.0 + time * 2.5) * (u_psy + u_audio);

    vec2 uv2 = vec2(cos(a), sin(a)) * r * 0.5 + 0.5;
    uv2 = abs(fract(uv2 * 2.0) - 0.5);

    float off = 0.015 * (u_psy + u_audio);
    vec2 dir = vec2(cos(time * 0.7), sin(time * 0.7));
    return chromaSplit(u_tex, uv2, dir, off);
}

void main() {
    vec2 uv = gl_FragCoord.xy / u_resolution;
    vec3 baseCol = texture(u_tex, uv).rgb;
    vec3 col = baseCol;

    float m = floor(u_effect + 0.5);
    if (m < 0.5) {
        col = mix(tear(uv, u_time), texture(u_prevTex, uv).rgb, u_trail);
    } else if (m < 1.5) {
        col = mix(kaleidoscope(uv, u_time), texture(u_prevTex, uv).rgb, u_trail);
    }

    fragColor = vec4(mix(baseCol, col, clamp(u_dryWet, 0.0, 1.0)), 1.0);
}
`

// ────────────────────────────────── Public API ─────────────────────────────────

func GenerateVertexShader(isGLES bool) string {
	if isGLES {
		return vertexShaderSourceGLES
	}
	return vertexShaderSourceGL
}

// GetGlitchFragmentShader returns the effect program in GLSL ES 3.00.
func GetGlitchFragmentShader() string {
	return glitchFragmentShaderSource
}

package gpu

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
)

//go:embed shaders/terrain_gen.vert
var terrainGenVertexSrc string

//go:embed shaders/terrain_gen.frag
var terrainGenFragmentSrc string

// program is a linked shader program with its uniform locations cached.
type program struct {
	id   uint32
	locs map[string]int32
}

func newProgram(vertexSrc, fragmentSrc string) (*program, error) {
	id, err := compileProgram(vertexSrc, fragmentSrc)
	if err != nil {
		return nil, err
	}
	return &program{id: id, locs: make(map[string]int32)}, nil
}

func (p *program) use() {
	gl.UseProgram(p.id)
}

func (p *program) location(name string) int32 {
	if loc, ok := p.locs[name]; ok {
		return loc
	}
	loc := gl.GetUniformLocation(p.id, gl.Str(name+"\x00"))
	p.locs[name] = loc
	return loc
}

func (p *program) setInt(name string, value int32) {
	gl.Uniform1i(p.location(name), value)
}

func (p *program) setUint(name string, value uint32) {
	gl.Uniform1ui(p.location(name), value)
}

func (p *program) setFloat(name string, value float32) {
	gl.Uniform1f(p.location(name), value)
}

func (p *program) setVector3(name string, x, y, z float32) {
	gl.Uniform3f(p.location(name), x, y, z)
}

func (p *program) setIVector3(name string, x, y, z int32) {
	gl.Uniform3i(p.location(name), x, y, z)
}

func (p *program) delete() {
	gl.DeleteProgram(p.id)
}

func compileProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	vertexShader, err := compileShader(vertexSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fragmentShader, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vertexShader)
		return 0, err
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)
	gl.DeleteShader(vertexShader)
	gl.DeleteShader(fragmentShader)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)

		return 0, fmt.Errorf("failed to link generation program: %v", log)
	}
	return program, nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
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

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)

		return 0, fmt.Errorf("failed to compile shader: %v", log)
	}
	return shader, nil
}

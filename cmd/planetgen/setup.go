package main

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"planetgen/internal/gpu"
	"planetgen/internal/planet"
)

// newDevice returns the generation device and a function releasing it. The
// OpenGL device lives in a hidden window whose context stays current on the
// main thread.
func newDevice(headless bool, gen *planet.GenData) (gpu.Device, func(), error) {
	if headless {
		return gpu.NewSoftwareDevice(gen), func() {}, nil
	}

	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("could not initialize glfw: %w", err)
	}
	window, err := setupWindow()
	if err != nil {
		glfw.Terminate()
		return nil, nil, err
	}
	dev, err := gpu.NewGLDevice(gen)
	if err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, nil, err
	}
	return dev, func() {
		dev.Delete()
		window.Destroy()
		glfw.Terminate()
	}, nil
}

func setupWindow() (*glfw.Window, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Visible, glfw.False)

	window, err := glfw.CreateWindow(64, 64, "planetgen", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create window: %w", err)
	}
	window.MakeContextCurrent()

	// Initialize OpenGL bindings
	if err := gl.Init(); err != nil {
		window.Destroy()
		return nil, fmt.Errorf("could not initialize OpenGL: %w", err)
	}
	glfw.SwapInterval(0)
	return window, nil
}

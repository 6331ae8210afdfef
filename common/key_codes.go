package common

// Virtual key codes used by the viewer controls.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyW     = 87  // W key (ASCII): zoom in
	KeyA     = 65  // A key (ASCII): orbit left
	KeyS     = 83  // S key (ASCII): zoom out
	KeyD     = 68  // D key (ASCII): orbit right
	KeyQ     = 81  // Q key (ASCII): orbit down
	KeyE     = 69  // E key (ASCII): orbit up
	KeyP     = 80  // P key (ASCII): toggle profiler output
	KeySpace = 32  // Spacebar (ASCII): toggle automatic orbit
	KeyEsc   = 256 // Escape key (GLFW): quit
)

// Arrow keys (GLFW), aliases of A/D/Q/E.
const (
	KeyRight = 262
	KeyLeft  = 263
	KeyDown  = 264
	KeyUp    = 265
)

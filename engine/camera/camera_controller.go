package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraController owns the eye and target positions a Camera looks along.
// The only implementation orbits a target point on a sphere, optionally drifting
// around it at a fixed angular speed so unattended runs sweep the whole scene.
type CameraController interface {
	// Position returns the world-space eye position.
	Position() mgl32.Vec3

	// Target returns the world-space point the camera looks at.
	Target() mgl32.Vec3

	// SetTarget moves the orbit centre and recomputes the eye position.
	SetTarget(target mgl32.Vec3)

	// Zoom moves the eye towards (positive delta) or away from the target, clamped to the radius bounds.
	Zoom(delta float32)

	// Orbit rotates the eye around the target by the given azimuth and elevation deltas in radians.
	// Elevation is clamped to the elevation bounds.
	Orbit(dAzimuth, dElevation float32)

	// Advance applies the automatic orbit for an elapsed time.
	//
	// Parameters:
	//   - dt: elapsed seconds since the last call
	Advance(dt float32)

	Radius() float32
	SetRadius(radius float32)
	Azimuth() float32
	Elevation() float32
}

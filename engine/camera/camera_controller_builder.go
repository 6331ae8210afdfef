package camera

import "github.com/go-gl/mathgl/mgl32"

type CameraControllerOption func(*cameraControllerImpl)

// WithRadius sets the initial distance between the eye and the target.
func WithRadius(radius float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.radius = radius
	}
}

// WithAzimuth sets the initial horizontal angle around the Y axis, in radians.
func WithAzimuth(azimuth float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.azimuth = azimuth
	}
}

// WithElevation sets the initial angle above the horizontal plane, in radians.
func WithElevation(elevation float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.elevation = elevation
	}
}

// WithTarget sets the orbit centre.
func WithTarget(target mgl32.Vec3) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.target = target
	}
}

// WithRadiusBounds limits how close and how far the eye may be from the target.
func WithRadiusBounds(min, max float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.minRadius = min
		cc.maxRadius = max
	}
}

// WithZoomSpeed scales the delta passed to Zoom.
func WithZoomSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.zoomSpeed = speed
	}
}

// WithAutoOrbit makes Advance rotate the eye around the target at speed radians per second.
//
// Parameters:
//   - speed: azimuth drift in radians per second; zero disables it
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithAutoOrbit(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.autoOrbit = speed
	}
}

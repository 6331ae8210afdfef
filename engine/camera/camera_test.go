package camera

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrbitPosition(t *testing.T) {
	cc := NewOrbitController(WithRadius(10), WithAzimuth(0), WithElevation(0), WithTarget(mgl32.Vec3{1, 2, 3}))
	assert.True(t, cc.Position().ApproxEqualThreshold(mgl32.Vec3{1, 2, 13}, 1e-5))

	cc.Orbit(math32.Pi/2, 0)
	assert.True(t, cc.Position().ApproxEqualThreshold(mgl32.Vec3{11, 2, 3}, 1e-4), "%v", cc.Position())
	assert.InDelta(t, 10, cc.Position().Sub(cc.Target()).Len(), 1e-4)
}

func TestOrbitClamps(t *testing.T) {
	cc := NewOrbitController(WithRadius(10), WithRadiusBounds(5, 20))
	cc.Zoom(100)
	assert.Equal(t, float32(5), cc.Radius())
	cc.SetRadius(1000)
	assert.Equal(t, float32(20), cc.Radius())

	cc.Orbit(0, 10)
	assert.Less(t, cc.Elevation(), math32.Pi/2)
	cc.Orbit(-3*math32.Pi, 0)
	assert.GreaterOrEqual(t, cc.Azimuth(), float32(0))
	assert.Less(t, cc.Azimuth(), 2*math32.Pi)
}

func TestAdvanceAutoOrbit(t *testing.T) {
	still := NewOrbitController()
	before := still.Position()
	still.Advance(1)
	assert.Equal(t, before, still.Position())

	moving := NewOrbitController(WithAutoOrbit(0.5), WithAzimuth(0))
	moving.Advance(2)
	assert.InDelta(t, 1, moving.Azimuth(), 1e-5)
}

func TestCameraFrustumContainsTarget(t *testing.T) {
	target := mgl32.Vec3{5, 0, -5}
	cc := NewOrbitController(WithTarget(target), WithRadius(30), WithAzimuth(1), WithElevation(0.4))
	cam := NewCamera(WithController(cc), WithAspect(16.0/9.0), WithClipPlanes(0.1, 100))

	f := cam.Frustum()
	assert.True(t, f.ContainsPoint(target))
	assert.False(t, f.ContainsPoint(cam.Position().Add(cam.Position().Sub(target))))

	cc.Orbit(2, 0)
	cam.Update()
	assert.True(t, cam.Frustum().ContainsPoint(target))
}

func TestSetAspectRebuildsProjection(t *testing.T) {
	cam := NewCamera(WithController(NewOrbitController()))
	before := cam.Projection()
	cam.SetAspect(2)
	assert.NotEqual(t, before, cam.Projection())
	assert.Equal(t, float32(2), cam.Aspect())

	cam.SetAspect(0)
	assert.Equal(t, float32(2), cam.Aspect(), "non-positive aspect is ignored")
}

func TestFrameUniformLayout(t *testing.T) {
	cam := NewCamera(WithController(NewOrbitController(WithRadius(12))))
	u := FrameUniformFrom(cam)
	buf := u.MarshalInto(make([]byte, 512))
	require.Len(t, buf, GPUFrameUniformSize)

	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, u.View[0], f(0))
	assert.Equal(t, u.Projection[5], f(64+5*4))
	assert.Equal(t, u.ViewProj[15], f(128+15*4))
	assert.Equal(t, u.CameraPosition[2], f(192+8))
	assert.Equal(t, float32(1), f(204))
}

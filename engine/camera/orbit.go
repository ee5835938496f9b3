package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Orbit positions a node on a sphere around a target point. Input handlers may call its
// methods from any goroutine; Apply copies the current pose onto a node.
type Orbit struct {
	mu *sync.Mutex

	target mgl32.Vec3

	radius    float32
	azimuth   float32 // around Y
	elevation float32 // from the horizontal plane

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed float32
	zoomSpeed  float32
}

// OrbitOption configures an Orbit.
type OrbitOption func(*Orbit)

// WithOrbitTarget sets the point orbited around.
func WithOrbitTarget(target mgl32.Vec3) OrbitOption {
	return func(o *Orbit) {
		o.target = target
	}
}

// WithOrbitRadius sets the initial distance and its limits.
//
// Parameters:
//   - radius: the initial distance
//   - minRadius, maxRadius: the zoom limits
//
// Returns:
//   - OrbitOption: a function that sets the radius
func WithOrbitRadius(radius, minRadius, maxRadius float32) OrbitOption {
	return func(o *Orbit) {
		o.radius = radius
		o.minRadius = minRadius
		o.maxRadius = maxRadius
	}
}

// WithOrbitAngles sets the initial azimuth and elevation in radians.
func WithOrbitAngles(azimuth, elevation float32) OrbitOption {
	return func(o *Orbit) {
		o.azimuth = azimuth
		o.elevation = elevation
	}
}

// WithOrbitSpeeds sets the per-call rotation step in radians and the zoom step in world units.
func WithOrbitSpeeds(orbitSpeed, zoomSpeed float32) OrbitOption {
	return func(o *Orbit) {
		o.orbitSpeed = orbitSpeed
		o.zoomSpeed = zoomSpeed
	}
}

// NewOrbit creates an orbit 250 units from the origin, 30 degrees above the horizon.
//
// Parameters:
//   - options: functional options to configure the orbit
//
// Returns:
//   - *Orbit: the orbit
func NewOrbit(options ...OrbitOption) *Orbit {
	o := &Orbit{
		mu:           &sync.Mutex{},
		radius:       250,
		elevation:    math32.Pi / 6,
		minRadius:    20,
		maxRadius:    2000,
		minElevation: 0.05,
		maxElevation: math32.Pi/2 - 0.1,
		orbitSpeed:   0.03,
		zoomSpeed:    15,
	}
	for _, opt := range options {
		opt(o)
	}
	o.elevation = common.Clamp(o.elevation, o.minElevation, o.maxElevation)
	o.radius = common.Clamp(o.radius, o.minRadius, o.maxRadius)
	return o
}

// Rotate steps the azimuth and elevation by the given number of orbit steps.
//
// Parameters:
//   - azimuthSteps: horizontal steps, positive orbits right
//   - elevationSteps: vertical steps, positive orbits up
func (o *Orbit) Rotate(azimuthSteps, elevationSteps float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.azimuth += azimuthSteps * o.orbitSpeed
	o.elevation = common.Clamp(o.elevation+elevationSteps*o.orbitSpeed, o.minElevation, o.maxElevation)
}

// Zoom moves toward the target by delta zoom steps, clamped to the radius limits.
func (o *Orbit) Zoom(delta float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.radius = common.Clamp(o.radius-delta*o.zoomSpeed, o.minRadius, o.maxRadius)
}

func (o *Orbit) SetTarget(target mgl32.Vec3) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.target = target
}

func (o *Orbit) Radius() float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.radius
}

// Position returns the orbiting point: target + radius * (cos(el) sin(az), sin(el), cos(el) cos(az)).
func (o *Orbit) Position() mgl32.Vec3 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.position()
}

func (o *Orbit) position() mgl32.Vec3 {
	cosElev, sinElev := math32.Cos(o.elevation), math32.Sin(o.elevation)
	cosAzim, sinAzim := math32.Cos(o.azimuth), math32.Sin(o.azimuth)
	return o.target.Add(mgl32.Vec3{cosElev * sinAzim, sinElev, cosElev * cosAzim}.Mul(o.radius))
}

// Apply moves node to the orbit position and points it at the target.
//
// Parameters:
//   - node: the node to pose, usually a camera node
func (o *Orbit) Apply(node graph.GraphNode) {
	o.mu.Lock()
	pos, target := o.position(), o.target
	o.mu.Unlock()

	node.SetPosition(pos)
	node.LookAt(target, mgl32.Vec3{0, 1, 0})
}

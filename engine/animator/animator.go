package animator

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// animator implements the Animator interface.
type animator struct {
	mu *sync.Mutex

	root  graph.GraphNode
	clips []*Clip
	// targets holds the node of each channel of each clip, resolved on first use.
	targets map[*Clip][]graph.GraphNode

	playing bool
	state   playbackState
}

// playbackState is the time, speed and blend state advanced by Update.
type playbackState struct {
	clip                        int
	time, speed                 float32
	loop, blending              bool
	blendTo                     int
	blendToTime                 float32
	blendDuration, blendElapsed float32
}

// Animator plays keyframed clips onto the nodes below a root. Skinned mesh instances whose bones
// live under that root follow the pose on the next renderer update.
//
// Update and the playback controls may be called from different goroutines.
type Animator interface {
	// Root returns the node channels are resolved under.
	Root() graph.GraphNode

	// AddClip registers a clip.
	//
	// Parameters:
	//   - clip: the clip
	//
	// Returns:
	//   - int: the clip index used by Play and BlendTo
	AddClip(clip *Clip) int

	// Clip returns the clip at index, or nil.
	Clip(index int) *Clip

	// NumClips returns the number of registered clips.
	NumClips() int

	// Play starts a clip from the beginning at normal speed, cancelling any blend.
	//
	// Parameters:
	//   - clip: the clip index
	//   - loop: wrap around at the end instead of holding the last pose
	Play(clip int, loop bool)

	// BlendTo cross-fades from the playing clip to another one over duration seconds. The target
	// starts at its beginning and inherits the loop flag.
	//
	// Parameters:
	//   - clip: the target clip index
	//   - duration: the cross-fade length in seconds; zero switches on the next Update
	BlendTo(clip int, duration float32)

	// CancelBlend stops a cross-fade and keeps playing the source clip.
	CancelBlend()

	// Stop halts playback. The nodes keep their last pose.
	Stop()

	// Playing reports whether a clip is playing.
	Playing() bool

	// CurrentClip returns the index of the playing clip.
	CurrentClip() int

	// SetTime moves the playhead of the current clip.
	//
	// Parameters:
	//   - t: the time in seconds
	SetTime(t float32)

	// Time returns the playhead of the current clip.
	Time() float32

	// SetSpeed scales the playback rate. Negative speeds play backwards.
	//
	// Parameters:
	//   - speed: the rate multiplier
	SetSpeed(speed float32)

	// Speed returns the playback rate multiplier.
	Speed() float32

	// IsBlending reports whether a cross-fade is in progress.
	IsBlending() bool

	// BlendProgress returns the cross-fade progress in [0, 1], or 0 when not blending.
	BlendProgress() float32

	// Update advances playback by dt seconds and writes the sampled pose to the target nodes.
	//
	// Parameters:
	//   - dt: the elapsed time in seconds
	Update(dt float32)
}

var _ Animator = &animator{}

// NewAnimator creates an animator posing the nodes below root.
//
// Parameters:
//   - root: the node channel targets are searched under
//   - options: variadic list of AnimatorBuilderOption functions to configure the Animator
//
// Returns:
//   - Animator: the animator, stopped
func NewAnimator(root graph.GraphNode, options ...AnimatorBuilderOption) Animator {
	a := &animator{
		mu:      &sync.Mutex{},
		root:    root,
		targets: make(map[*Clip][]graph.GraphNode),
		state:   playbackState{speed: 1},
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

func (a *animator) Root() graph.GraphNode { return a.root }

func (a *animator) AddClip(clip *Clip) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clips = append(a.clips, clip)
	return len(a.clips) - 1
}

func (a *animator) Clip(index int) *Clip {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || index >= len(a.clips) {
		return nil
	}
	return a.clips[index]
}

func (a *animator) NumClips() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.clips)
}

func (a *animator) Play(clip int, loop bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !logger.Assert(clip >= 0 && clip < len(a.clips), "animation clip out of range", "clip", clip) {
		return
	}
	a.state = playbackState{clip: clip, speed: a.state.speed, loop: loop}
	a.playing = true
}

func (a *animator) BlendTo(clip int, duration float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !logger.Assert(clip >= 0 && clip < len(a.clips), "animation clip out of range", "clip", clip) {
		return
	}
	if !a.playing {
		a.state = playbackState{clip: clip, speed: a.state.speed, loop: a.state.loop}
		a.playing = true
		return
	}
	a.state.blending = true
	a.state.blendTo = clip
	a.state.blendToTime = 0
	a.state.blendDuration = max(duration, 0)
	a.state.blendElapsed = 0
}

func (a *animator) CancelBlend() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.blending = false
	a.state.blendElapsed = 0
}

func (a *animator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playing = false
	a.state.blending = false
}

func (a *animator) Playing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

func (a *animator) CurrentClip() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.clip
}

func (a *animator) SetTime(t float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.time = t
}

func (a *animator) Time() float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.time
}

func (a *animator) SetSpeed(speed float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.speed = speed
}

func (a *animator) Speed() float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.speed
}

func (a *animator) IsBlending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.blending
}

func (a *animator) BlendProgress() float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blendProgress()
}

func (a *animator) blendProgress() float32 {
	if !a.state.blending {
		return 0
	}
	if a.state.blendDuration <= 0 {
		return 1
	}
	return min(a.state.blendElapsed/a.state.blendDuration, 1)
}

func (a *animator) Update(dt float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.playing || len(a.clips) == 0 {
		return
	}

	st := &a.state
	st.time = advance(st.time, dt*st.speed, a.clips[st.clip].duration, st.loop)

	weight := float32(0)
	if st.blending {
		st.blendElapsed += dt
		st.blendToTime = advance(st.blendToTime, dt*st.speed, a.clips[st.blendTo].duration, st.loop)
		weight = a.blendProgress()
		if weight >= 1 {
			st.clip = st.blendTo
			st.time = st.blendToTime
			st.blending = false
			st.blendElapsed = 0
			weight = 0
		}
	}

	if !st.blending {
		a.apply(a.clips[st.clip], st.time, nil, 0, 0)
		return
	}
	a.apply(a.clips[st.clip], st.time, a.clips[st.blendTo], st.blendToTime, weight)
}

// apply samples from at fromTime and, when to is set, mixes in to at toTime by weight, then writes
// the result to the target nodes. Components a clip does not animate keep the node's value.
func (a *animator) apply(from *Clip, fromTime float32, to *Clip, toTime, weight float32) {
	fromNodes := a.resolve(from)
	for i := range from.channels {
		node := fromNodes[i]
		if node == nil {
			continue
		}
		p := currentPose(node)
		from.channels[i].sample(fromTime, &p)
		if to != nil {
			q := currentPose(node)
			if ch := findChannel(to, node, a.resolve(to)); ch != nil {
				ch.sample(toTime, &q)
			}
			p = mix(p, q, weight)
		}
		setPose(node, p)
	}
	if to == nil {
		return
	}

	// nodes only the target clip animates fade in from their current pose
	toNodes := a.resolve(to)
	for i := range to.channels {
		node := toNodes[i]
		if node == nil || findChannel(from, node, fromNodes) != nil {
			continue
		}
		p := currentPose(node)
		q := p
		to.channels[i].sample(toTime, &q)
		setPose(node, mix(p, q, weight))
	}
}

// resolve returns the target node of every channel of clip, caching the lookup.
func (a *animator) resolve(clip *Clip) []graph.GraphNode {
	if nodes, ok := a.targets[clip]; ok {
		return nodes
	}
	nodes := make([]graph.GraphNode, len(clip.channels))
	for i, ch := range clip.channels {
		if a.root != nil {
			nodes[i] = a.root.FindByName(ch.Target)
		}
		if nodes[i] == nil {
			logger.Logger().Warn("animation target not found", "clip", clip.name, "target", ch.Target)
		}
	}
	a.targets[clip] = nodes
	return nodes
}

func findChannel(clip *Clip, node graph.GraphNode, nodes []graph.GraphNode) *Channel {
	for i, n := range nodes {
		if n == node {
			return &clip.channels[i]
		}
	}
	return nil
}

// advance moves t by delta within [0, duration], wrapping when looping and clamping otherwise.
func advance(t, delta, duration float32, loop bool) float32 {
	t += delta
	if duration <= 0 {
		return 0
	}
	if loop {
		t = math32.Mod(t, duration)
		if t < 0 {
			t += duration
		}
		return t
	}
	return min(max(t, 0), duration)
}

func currentPose(node graph.GraphNode) pose {
	return pose{position: node.LocalPosition(), rotation: node.LocalRotation(), scale: node.LocalScale()}
}

func setPose(node graph.GraphNode, p pose) {
	node.SetLocalPosition(p.position)
	node.SetLocalRotation(p.rotation)
	node.SetLocalScale(p.scale)
}

func mix(a, b pose, w float32) pose {
	return pose{
		position: lerpVec3(a.position, b.position, w),
		rotation: mgl32.QuatSlerp(a.rotation, b.rotation, w),
		scale:    lerpVec3(a.scale, b.scale, w),
	}
}

package animator

// AnimatorBuilderOption is a functional option for NewAnimator.
type AnimatorBuilderOption func(*animator)

// WithClips registers clips at indices 0, 1, ... in order.
//
// Parameters:
//   - clips: the clips
//
// Returns:
//   - AnimatorBuilderOption: option function to apply
func WithClips(clips ...*Clip) AnimatorBuilderOption {
	return func(a *animator) {
		a.clips = append(a.clips, clips...)
	}
}

// WithSpeed sets the initial playback rate multiplier.
func WithSpeed(speed float32) AnimatorBuilderOption {
	return func(a *animator) {
		a.state.speed = speed
	}
}

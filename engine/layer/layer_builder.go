package layer

// LayerBuilderOption is a function that configures a layer during construction.
type LayerBuilderOption func(*Layer)

// WithID is an option builder that sets the id cameras reference the layer by.
//
// Parameters:
//   - id: the layer id
//
// Returns:
//   - LayerBuilderOption: a function that applies the id option to a layer
func WithID(id int) LayerBuilderOption {
	return func(l *Layer) {
		l.id = id
	}
}

// WithName is an option builder that sets the name of the layer.
func WithName(name string) LayerBuilderOption {
	return func(l *Layer) {
		l.name = name
	}
}

// WithEnabled is an option builder that sets whether the layer renders.
func WithEnabled(enabled bool) LayerBuilderOption {
	return func(l *Layer) {
		l.enabled = enabled
	}
}

// WithSortModes is an option builder that sets the opaque and transparent sort modes.
//
// Parameters:
//   - opaque: the order of the opaque bucket
//   - transparent: the order of the transparent bucket
//
// Returns:
//   - LayerBuilderOption: a function that applies the sort option to a layer
func WithSortModes(opaque, transparent SortMode) LayerBuilderOption {
	return func(l *Layer) {
		l.opaqueSortMode = opaque
		l.transparentSortMode = transparent
	}
}

// WithClearFlags is an option builder that selects the buffers cleared when the layer is not the
// first one a camera renders.
func WithClearFlags(color, depth, stencil bool) LayerBuilderOption {
	return func(l *Layer) {
		l.clearColorBuffer = color
		l.clearDepthBuffer = depth
		l.clearStencilBuffer = stencil
	}
}

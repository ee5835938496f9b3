package gpu

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gogpu/gputypes"
)

// ErrWGSLBinding is returned when WGSL resource declarations cannot be mapped to a bind group format.
var ErrWGSLBinding = errors.New("wgsl binding declaration")

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// fieldRegex matches a struct member: optional attributes, name, colon, type
	fieldRegex = regexp.MustCompile(`(?:@\w+\([^)]*\)\s*)*(\w+)\s*:\s*(.+)`)

	vertexEntryRegex   = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)

	// bindingDeclRegex captures group, binding, address space, name and type of
	// `@group(g) @binding(b) var<space> name: Type;`
	bindingDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)

	// arrayTypeRegex captures the element type and length of a fixed-size array
	arrayTypeRegex = regexp.MustCompile(`^array<\s*([\w<>]+)\s*,\s*(\d+)\s*>$`)
)

var wgslUniformTypes = map[string]UniformType{
	"f32": UniformTypeFloat, "vec2f": UniformTypeVec2, "vec3f": UniformTypeVec3, "vec4f": UniformTypeVec4,
	"vec2<f32>": UniformTypeVec2, "vec3<f32>": UniformTypeVec3, "vec4<f32>": UniformTypeVec4,
	"i32": UniformTypeInt, "vec2i": UniformTypeIVec2, "vec3i": UniformTypeIVec3, "vec4i": UniformTypeIVec4,
	"vec2<i32>": UniformTypeIVec2, "vec3<i32>": UniformTypeIVec3, "vec4<i32>": UniformTypeIVec4,
	"u32": UniformTypeUint, "vec2u": UniformTypeUVec2, "vec3u": UniformTypeUVec3, "vec4u": UniformTypeUVec4,
	"vec2<u32>": UniformTypeUVec2, "vec3<u32>": UniformTypeUVec3, "vec4<u32>": UniformTypeUVec4,
	"mat2x2f": UniformTypeMat2, "mat3x3f": UniformTypeMat3, "mat4x4f": UniformTypeMat4,
	"mat2x2<f32>": UniformTypeMat2, "mat3x3<f32>": UniformTypeMat3, "mat4x4<f32>": UniformTypeMat4,
}

var wgslTextureDimensions = map[string]gputypes.TextureViewDimension{
	"texture_1d":               gputypes.TextureViewDimension1D,
	"texture_2d":               gputypes.TextureViewDimension2D,
	"texture_2d_array":         gputypes.TextureViewDimension2DArray,
	"texture_3d":               gputypes.TextureViewDimension3D,
	"texture_cube":             gputypes.TextureViewDimensionCube,
	"texture_cube_array":       gputypes.TextureViewDimensionCubeArray,
	"texture_depth_2d":         gputypes.TextureViewDimension2D,
	"texture_depth_2d_array":   gputypes.TextureViewDimension2DArray,
	"texture_depth_cube":       gputypes.TextureViewDimensionCube,
	"texture_depth_cube_array": gputypes.TextureViewDimensionCubeArray,
	"texture_storage_1d":       gputypes.TextureViewDimension1D,
	"texture_storage_2d":       gputypes.TextureViewDimension2D,
	"texture_storage_2d_array": gputypes.TextureViewDimension2DArray,
	"texture_storage_3d":       gputypes.TextureViewDimension3D,
}

var wgslTexelFormats = map[string]gputypes.TextureFormat{
	"rgba8unorm":  gputypes.TextureFormatRGBA8Unorm,
	"bgra8unorm":  gputypes.TextureFormatBGRA8Unorm,
	"r32float":    gputypes.TextureFormatR32Float,
	"rg32float":   gputypes.TextureFormatRG32Float,
	"rgba16float": gputypes.TextureFormatRGBA16Float,
	"rgba32float": gputypes.TextureFormatRGBA32Float,
}

var wgslStorageAccess = map[string]gputypes.StorageTextureAccess{
	"write":      gputypes.StorageTextureAccessWriteOnly,
	"read":       gputypes.StorageTextureAccessReadOnly,
	"read_write": gputypes.StorageTextureAccessReadWrite,
}

type wgslField struct {
	name     string
	typeName string
}

type wgslBinding struct {
	group        int
	binding      int
	addressSpace string
	name         string
	typeName     string
}

// wgslModule is the binding-relevant summary of a WGSL source.
type wgslModule struct {
	structs        map[string][]wgslField
	bindings       []wgslBinding
	vertexEntry    string
	fragmentEntry  string
	groupsDeclared []int
}

// scanWGSL extracts struct blocks, resource declarations and entry points from source.
func scanWGSL(source string) *wgslModule {
	cleaned := stripComments(source)
	m := &wgslModule{structs: make(map[string][]wgslField)}

	for _, match := range structBlockRegex.FindAllStringSubmatch(cleaned, -1) {
		m.structs[match[1]] = parseStructFields(match[2])
	}

	for _, match := range bindingDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		m.bindings = append(m.bindings, wgslBinding{
			group:        group,
			binding:      binding,
			addressSpace: strings.TrimSpace(match[3]),
			name:         match[4],
			typeName:     strings.TrimSpace(match[5]),
		})
		if !slices.Contains(m.groupsDeclared, group) {
			m.groupsDeclared = append(m.groupsDeclared, group)
		}
	}
	slices.SortFunc(m.bindings, func(a, b wgslBinding) int {
		if a.group != b.group {
			return a.group - b.group
		}
		return a.binding - b.binding
	})
	slices.Sort(m.groupsDeclared)

	if match := vertexEntryRegex.FindStringSubmatch(cleaned); match != nil {
		m.vertexEntry = match[1]
	}
	if match := fragmentEntryRegex.FindStringSubmatch(cleaned); match != nil {
		m.fragmentEntry = match[1]
	}
	return m
}

// groupFormats builds the uniform buffer format of the first uniform binding and the bind group
// format of one group. Declared binding numbers must match the slots the format assigns.
func (m *wgslModule) groupFormats(device Device, group int) (*UniformBufferFormat, *BindGroupFormat, error) {
	var (
		bindings []wgslBinding
		options  []BindGroupFormatBuilderOption
		ubFormat *UniformBufferFormat
	)
	for _, b := range m.bindings {
		if b.group == group {
			bindings = append(bindings, b)
		}
	}
	if len(bindings) == 0 {
		return nil, nil, nil
	}

	stages := gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
	for i := 0; i < len(bindings); i++ {
		b := bindings[i]
		base, params := splitTypeParams(b.typeName)
		switch {
		case b.addressSpace == "uniform":
			options = append(options, WithUniformBuffer(b.name, stages))
			if ubFormat == nil {
				uniforms, err := m.uniformsOf(b.typeName)
				if err != nil {
					return nil, nil, fmt.Errorf("%w: %s: %w", ErrWGSLBinding, b.name, err)
				}
				ubFormat = NewUniformBufferFormat(device, uniforms)
			}
		case strings.HasPrefix(b.addressSpace, "storage"):
			options = append(options, WithStorageBuffer(b.name, stages, !strings.Contains(b.addressSpace, "read_write")))
		case strings.HasPrefix(base, "texture_storage_"):
			parts := strings.SplitN(params, ",", 2)
			format := wgslTexelFormats[strings.TrimSpace(parts[0])]
			access := gputypes.StorageTextureAccessWriteOnly
			if len(parts) == 2 {
				access = wgslStorageAccess[strings.TrimSpace(parts[1])]
			}
			options = append(options, WithStorageTexture(b.name, stages, format, wgslTextureDimensions[base], access))
		case strings.HasPrefix(base, "texture_"):
			dim, ok := wgslTextureDimensions[base]
			if !ok {
				return nil, nil, fmt.Errorf("%w: unsupported texture type %q", ErrWGSLBinding, b.typeName)
			}
			sampleType := gputypes.TextureSampleTypeFloat
			switch {
			case strings.HasPrefix(base, "texture_depth_"):
				sampleType = gputypes.TextureSampleTypeDepth
			case params == "i32":
				sampleType = gputypes.TextureSampleTypeSint
			case params == "u32":
				sampleType = gputypes.TextureSampleTypeUint
			}
			hasSampler := i+1 < len(bindings) && strings.HasPrefix(bindings[i+1].typeName, "sampler")
			if sampleType == gputypes.TextureSampleTypeFloat && !hasSampler {
				// read with textureLoad, so 32-bit float formats are allowed
				sampleType = gputypes.TextureSampleTypeUnfilterableFloat
			}
			options = append(options, WithTexture(b.name, stages, dim, sampleType, hasSampler))
			if hasSampler {
				i++
			}
		case strings.HasPrefix(base, "sampler"):
			return nil, nil, fmt.Errorf("%w: sampler %s does not follow a texture", ErrWGSLBinding, b.name)
		default:
			return nil, nil, fmt.Errorf("%w: unsupported declaration %s: %s", ErrWGSLBinding, b.name, b.typeName)
		}
	}

	format := NewBindGroupFormat(device, options...)
	if err := checkSlots(format, bindings); err != nil {
		return nil, nil, err
	}
	return ubFormat, format, nil
}

// uniformsOf maps the members of a uniform struct to uniform formats.
func (m *wgslModule) uniformsOf(typeName string) ([]*UniformFormat, error) {
	fields, ok := m.structs[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown struct %q", typeName)
	}
	uniforms := make([]*UniformFormat, 0, len(fields))
	for _, f := range fields {
		if t, ok := wgslUniformTypes[f.typeName]; ok {
			uniforms = append(uniforms, NewUniformFormat(f.name, t, 0))
			continue
		}
		if am := arrayTypeRegex.FindStringSubmatch(f.typeName); am != nil {
			t, ok := wgslUniformTypes[am[1]]
			if !ok {
				return nil, fmt.Errorf("unsupported array element %q", am[1])
			}
			n, _ := strconv.Atoi(am[2])
			uniforms = append(uniforms, NewUniformFormat(f.name, t, n))
			continue
		}
		return nil, fmt.Errorf("unsupported member type %q", f.typeName)
	}
	return uniforms, nil
}

func checkSlots(format *BindGroupFormat, bindings []wgslBinding) error {
	slotOf := make(map[string]int, len(bindings))
	for _, u := range format.UniformBuffers() {
		slotOf[u.Name] = u.Slot
	}
	for _, t := range format.Textures() {
		slotOf[t.Name] = t.Slot
	}
	for _, t := range format.StorageTextures() {
		slotOf[t.Name] = t.Slot
	}
	for _, s := range format.StorageBuffers() {
		slotOf[s.Name] = s.Slot
	}
	for _, b := range bindings {
		slot, ok := slotOf[b.name]
		if ok && slot != b.binding {
			return fmt.Errorf("%w: %s declared at binding %d, expected %d", ErrWGSLBinding, b.name, b.binding, slot)
		}
	}
	return nil
}

func parseStructFields(body string) []wgslField {
	parts := splitAtTopLevelCommas(body)
	fields := make([]wgslField, 0, len(parts))
	for _, line := range parts {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if fm := fieldRegex.FindStringSubmatch(line); fm != nil {
			fields = append(fields, wgslField{name: fm[1], typeName: strings.TrimSpace(fm[2])})
		}
	}
	return fields
}

// splitTypeParams splits "texture_2d<f32>" into ("texture_2d", "f32").
func splitTypeParams(typeName string) (string, string) {
	before, after, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return before, strings.TrimSpace(strings.TrimSuffix(after, ">"))
}

// splitAtTopLevelCommas splits s at commas outside angle brackets, so array<T, N> stays whole.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// stripComments removes line comments and nested block comments.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch {
			case source[i] == '/' && source[i+1] == '*':
				depth++
				i++
				continue
			case source[i] == '*' && source[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			case depth == 0 && source[i] == '/' && source[i+1] == '/':
				for i < len(source) && source[i] != '\n' {
					i++
				}
				if i < len(source) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}

package material

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
)

// Texture names bound in group 1 by the standard shaders.
const (
	BoneTextureName      = "boneTexture"
	MorphTextureName     = "morphPositions"
	ClusterLightsName    = "clusterLights"
	ClusterCellsName     = "clusterCells"
	ShadowAtlasName      = "shadowAtlas"
	shadowSamplerPostfix = "Sampler"
)

// LightUniformName returns the name of a per-light uniform or texture of the standard shaders,
// for example LightUniformName(0, "color") is "light0_color".
func LightUniformName(index int, field string) string {
	return "light" + strconv.Itoa(index) + "_" + field
}

type wgslDecl struct {
	Binding int
	Name    string
	Type    string
}

type wgslLight struct {
	Index       int
	Directional bool
	Spot        bool
	Omni        bool
	Shadowed    bool
	ShadowKind  string
	PcfRadius   int
}

type wgslShader struct {
	Forward          bool
	Depth            bool
	Shadow           bool
	ShadowMoments    bool
	ShadowDistance   bool
	Skin             bool
	Morph            bool
	Instancing       bool
	ScreenSpace      bool
	Clustered        bool
	ClusteredShadows bool
	SpotType         int
	NearScale        string
	MorphTargets     int
	Lights           []wgslLight
	Textures         []wgslDecl
}

var standardTemplate = template.Must(template.New("standard").Parse(viewUniformsWGSL + standardWGSL))

// StandardShaderSource returns the WGSL of the standard shader for params.
//
// Parameters:
//   - params: the variant description
//
// Returns:
//   - string: the WGSL source
//   - error: a template execution error
func StandardShaderSource(params ShaderVariantParams) (string, error) {
	data := newWGSLShader(params)
	var sb strings.Builder
	if err := standardTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("standard shader %s: %w", params.Key(), err)
	}
	return sb.String(), nil
}

// GenerateStandardShader builds the standard lit, depth or shadow shader for params.
//
// Parameters:
//   - device: the device compiling the shader
//   - params: the variant description
//
// Returns:
//   - *gpu.Shader: the shader, Failed when the source could not be produced or compiled
func GenerateStandardShader(device gpu.Device, params ShaderVariantParams) *gpu.Shader {
	name := "standard_" + params.Pass.String() + "_" + params.Key()
	source, err := StandardShaderSource(params)
	if err != nil {
		s := gpu.NewShaderFromWGSL(device, name, "")
		s.Fail(err)
		return s
	}
	return gpu.NewShaderFromWGSL(device, name, source)
}

func newWGSLShader(params ShaderVariantParams) *wgslShader {
	data := &wgslShader{
		Forward:      params.Pass == ShaderPassForward,
		Depth:        params.Pass == ShaderPassDepth,
		Shadow:       params.Pass.IsShadow(),
		Skin:         params.Defs.Has(DefSkin),
		Morph:        params.Defs.Has(DefMorph),
		Instancing:   params.Defs.Has(DefInstancing),
		ScreenSpace:  params.Defs.Has(DefScreenSpace),
		Clustered:    params.Clustered && params.Pass == ShaderPassForward,
		SpotType:     int(light.LightTypeSpot),
		NearScale:    strconv.FormatFloat(float64(light.OmniShadowNearScale), 'f', -1, 32),
		MorphTargets: 8,
	}
	if data.Shadow {
		lightType, shadowType := params.Pass.ShadowConfig()
		data.ShadowDistance = lightType == light.LightTypeOmni && !params.Clustered
		data.ShadowMoments = shadowType.IsVsm() && !data.ShadowDistance && !params.Clustered
	}

	binding := 1
	addTexture := func(name, typ string) {
		data.Textures = append(data.Textures, wgslDecl{Binding: binding, Name: name, Type: typ})
		binding++
	}
	if data.Skin {
		addTexture(BoneTextureName, "texture_2d<f32>")
	}
	if data.Morph {
		addTexture(MorphTextureName, "texture_2d<f32>")
	}
	if !data.Forward {
		return data
	}

	receive := !params.Defs.Has(DefNoShadow)
	for i, l := range params.Lights {
		wl := wgslLight{
			Index:       i,
			Directional: l.Type() == light.LightTypeDirectional,
			Spot:        l.Type() == light.LightTypeSpot,
			Omni:        l.Type() == light.LightTypeOmni,
			Shadowed:    receive && l.CastShadows(),
		}
		if wl.Shadowed {
			mapName := LightUniformName(i, "shadowMap")
			switch st := l.ShadowType(); {
			case wl.Omni:
				wl.ShadowKind = "cube"
				addTexture(mapName, "texture_cube<f32>")
				addTexture(mapName+shadowSamplerPostfix, "sampler")
			case st.IsVsm():
				wl.ShadowKind = "vsm"
				addTexture(mapName, "texture_2d<f32>")
				addTexture(mapName+shadowSamplerPostfix, "sampler")
			case st == light.ShadowPCSS:
				wl.ShadowKind = "pcss"
				addTexture(mapName, "texture_depth_2d")
				addTexture(mapName+shadowSamplerPostfix, "sampler")
			default:
				wl.ShadowKind = "pcf"
				wl.PcfRadius = map[light.ShadowType]int{light.ShadowPCF1: 0, light.ShadowPCF3: 1, light.ShadowPCF5: 2}[st]
				addTexture(mapName, "texture_depth_2d")
				addTexture(mapName+shadowSamplerPostfix, "sampler_comparison")
			}
		}
		data.Lights = append(data.Lights, wl)
	}
	if data.Clustered {
		addTexture(ClusterLightsName, "texture_2d<f32>")
		addTexture(ClusterCellsName, "texture_2d<f32>")
		if receive {
			data.ClusteredShadows = true
			addTexture(ShadowAtlasName, "texture_depth_2d")
			addTexture(ShadowAtlasName+shadowSamplerPostfix, "sampler_comparison")
		}
	}
	return data
}

const standardWGSL = `
struct MeshUniforms {
    matrix_model: mat4x4f,
    matrix_normal: mat3x3f,
    material_baseColor: vec4f,
    alpha_ref: f32,
    twoSidedLightingNegScaleFactor: f32,
{{- if .Morph}}
    morph_weights: array<vec4f, 2>,
    morph_targets: array<vec4f, 2>,
{{- end}}
{{- range .Lights}}
    light{{.Index}}_color: vec3f,
    light{{.Index}}_range: f32,
    light{{.Index}}_position: vec3f,
    light{{.Index}}_cosInner: f32,
    light{{.Index}}_direction: vec3f,
    light{{.Index}}_cosOuter: f32,
{{- if .Shadowed}}
    light{{.Index}}_shadowParams: vec4f,
{{- if .Directional}}
    light{{.Index}}_shadowMatrixPalette: array<mat4x4f, 4>,
    light{{.Index}}_shadowCascadeDistances: vec4f,
    light{{.Index}}_shadowCascadeCount: f32,
{{- else if .Spot}}
    light{{.Index}}_shadowMatrix: mat4x4f,
{{- end}}
{{- end}}
{{- end}}
{{- if .Clustered}}
    cluster_boundsMin: vec3f,
    cluster_maxLights: f32,
    cluster_boundsDelta: vec3f,
    cluster_lightCount: f32,
    cluster_cells: vec3f,
{{- end}}
}

@group(1) @binding(0) var<uniform> mesh: MeshUniforms;
{{- range .Textures}}
@group(1) @binding({{.Binding}}) var {{.Name}}: {{.Type}};
{{- end}}

struct VertexInput {
    @location(0) position: vec3f,
    @location(1) normal: vec3f,
    @location(2) texCoord0: vec2f,
    @location(3) color: vec4f,
{{- if .Skin}}
    @location(5) blendIndices: vec4u,
    @location(6) blendWeight: vec4f,
{{- end}}
{{- if .Instancing}}
    @location(7) instance0: vec4f,
    @location(8) instance1: vec4f,
    @location(9) instance2: vec4f,
    @location(10) instance3: vec4f,
{{- end}}
    @builtin(vertex_index) vertexIndex: u32,
}

struct VertexOutput {
    @builtin(position) position: vec4f,
    @location(0) worldPosition: vec3f,
    @location(1) worldNormal: vec3f,
    @location(2) uv0: vec2f,
    @location(3) color: vec4f,
    @location(4) viewDepth: f32,
}
{{if .Skin}}
fn boneMatrix(index: u32) -> mat4x4f {
    let base = i32(index) * 4;
    return mat4x4f(
        textureLoad(boneTexture, vec2i(base, 0), 0),
        textureLoad(boneTexture, vec2i(base + 1, 0), 0),
        textureLoad(boneTexture, vec2i(base + 2, 0), 0),
        textureLoad(boneTexture, vec2i(base + 3, 0), 0),
    );
}

fn skinMatrix(indices: vec4u, weights: vec4f) -> mat4x4f {
    return boneMatrix(indices.x) * weights.x + boneMatrix(indices.y) * weights.y +
        boneMatrix(indices.z) * weights.z + boneMatrix(indices.w) * weights.w;
}
{{end}}
{{- if .Morph}}
fn morphOffset(vertexIndex: u32) -> vec3f {
    var offset = vec3f(0.0);
    for (var i = 0; i < {{.MorphTargets}}; i++) {
        let weight = mesh.morph_weights[i / 4][i % 4];
        if (weight != 0.0) {
            let row = i32(mesh.morph_targets[i / 4][i % 4]);
            offset += textureLoad(morphPositions, vec2i(i32(vertexIndex), row), 0).xyz * weight;
        }
    }
    return offset;
}
{{end}}
@vertex
fn vertexMain(input: VertexInput) -> VertexOutput {
    var output: VertexOutput;
    var position = input.position;
{{- if .Morph}}
    position += morphOffset(input.vertexIndex);
{{- end}}
    var model = mesh.matrix_model;
{{- if .Instancing}}
    model = mat4x4f(input.instance0, input.instance1, input.instance2, input.instance3);
{{- end}}
{{- if .Skin}}
    model = model * skinMatrix(input.blendIndices, input.blendWeight);
{{- end}}
    let world = model * vec4f(position, 1.0);
    output.worldPosition = world.xyz;
{{- if or .Skin .Instancing}}
    output.worldNormal = normalize((model * vec4f(input.normal, 0.0)).xyz);
{{- else}}
    output.worldNormal = normalize(mesh.matrix_normal * input.normal);
{{- end}}
    output.uv0 = input.texCoord0;
    output.color = input.color;
    output.viewDepth = -(view.matrix_view * world).z;
{{- if .ScreenSpace}}
    output.position = vec4f(position.xy, 0.5, 1.0);
{{- else}}
    output.position = view.matrix_viewProjection * world;
{{- end}}
    return output;
}
{{if .Shadow}}
@fragment
fn fragmentMain(input: VertexOutput){{if or .ShadowMoments .ShadowDistance}} -> @location(0) vec4f{{end}} {
    if (mesh.material_baseColor.a * input.color.a < mesh.alpha_ref) {
        discard;
    }
{{- if .ShadowMoments}}
    let depth = input.position.z;
    return vec4f(depth, depth * depth, 0.0, 1.0);
{{- else if .ShadowDistance}}
    let dist = length(input.worldPosition - view.view_position) * view.camera_params.x;
    return vec4f(dist, dist, dist, 1.0);
{{- end}}
}
{{else if .Depth}}
@fragment
fn fragmentMain(input: VertexOutput) -> @location(0) vec4f {
    if (mesh.material_baseColor.a * input.color.a < mesh.alpha_ref) {
        discard;
    }
    let depth = input.viewDepth * view.camera_params.x;
    return vec4f(depth, 0.0, 0.0, 1.0);
}
{{else}}
fn falloff(dist: f32, range: f32) -> f32 {
    let ratio = clamp(dist / range, 0.0, 1.0);
    let w = 1.0 - ratio * ratio;
    return w * w / (dist * dist + 1.0);
}

fn spotEffect(toLight: vec3f, direction: vec3f, cosInner: f32, cosOuter: f32) -> f32 {
    return smoothstep(cosOuter, cosInner, dot(-toLight, direction));
}

fn shadowPcf(shadowMap: texture_depth_2d, shadowSampler: sampler_comparison, coord: vec3f, texel: f32, radius: i32) -> f32 {
    var lit = 0.0;
    var taps = 0.0;
    for (var x = -radius; x <= radius; x++) {
        for (var y = -radius; y <= radius; y++) {
            let offset = vec2f(f32(x), f32(y)) * texel;
            lit += textureSampleCompareLevel(shadowMap, shadowSampler, coord.xy + offset, coord.z);
            taps += 1.0;
        }
    }
    return lit / taps;
}

fn shadowPcss(shadowMap: texture_depth_2d, shadowSampler: sampler, coord: vec3f, texel: f32) -> f32 {
    var blockers = 0.0;
    var blockerDepth = 0.0;
    for (var x = -2; x <= 2; x++) {
        for (var y = -2; y <= 2; y++) {
            let depth = textureSampleLevel(shadowMap, shadowSampler, coord.xy + vec2f(f32(x), f32(y)) * texel * 2.0, 0);
            if (depth < coord.z) {
                blockers += 1.0;
                blockerDepth += depth;
            }
        }
    }
    if (blockers == 0.0) {
        return 1.0;
    }
    let average = blockerDepth / blockers;
    let penumbra = clamp((coord.z - average) / max(average, 0.0001) * 8.0, 1.0, 4.0) * texel;
    var lit = 0.0;
    for (var x = -1; x <= 1; x++) {
        for (var y = -1; y <= 1; y++) {
            let depth = textureSampleLevel(shadowMap, shadowSampler, coord.xy + vec2f(f32(x), f32(y)) * penumbra, 0);
            lit += select(0.0, 1.0, depth >= coord.z);
        }
    }
    return lit / 9.0;
}

fn shadowVsm(shadowMap: texture_2d<f32>, shadowSampler: sampler, coord: vec3f) -> f32 {
    let moments = textureSampleLevel(shadowMap, shadowSampler, coord.xy, 0.0).xy;
    if (coord.z <= moments.x) {
        return 1.0;
    }
    let variance = max(moments.y - moments.x * moments.x, 0.00002);
    let d = coord.z - moments.x;
    return clamp(variance / (variance + d * d), 0.0, 1.0);
}

fn shadowCube(shadowMap: texture_cube<f32>, shadowSampler: sampler, lightToPoint: vec3f, range: f32, bias: f32) -> f32 {
    let stored = textureSampleLevel(shadowMap, shadowSampler, lightToPoint * vec3f(1.0, 1.0, -1.0), 0.0).r;
    return select(0.0, 1.0, length(lightToPoint) / range - bias <= stored);
}
{{range .Lights}}
{{- if .Shadowed}}
fn shadowLight{{.Index}}(p: vec3f, viewDepth: f32) -> f32 {
{{- if .Omni}}
    return shadowCube(light{{.Index}}_shadowMap, light{{.Index}}_shadowMapSampler, p - mesh.light{{.Index}}_position,
        mesh.light{{.Index}}_range, mesh.light{{.Index}}_shadowParams.z);
{{- else}}
{{- if .Directional}}
    var cascade = 0;
    let count = i32(mesh.light{{.Index}}_shadowCascadeCount);
    for (var c = 0; c < count - 1; c++) {
        if (viewDepth > mesh.light{{.Index}}_shadowCascadeDistances[c]) {
            cascade = c + 1;
        }
    }
    let projected = mesh.light{{.Index}}_shadowMatrixPalette[cascade] * vec4f(p, 1.0);
{{- else}}
    let projected = mesh.light{{.Index}}_shadowMatrix * vec4f(p, 1.0);
{{- end}}
    let coord = vec3f(projected.xy / projected.w, projected.z / projected.w - mesh.light{{.Index}}_shadowParams.z);
{{- if eq .ShadowKind "vsm"}}
    return shadowVsm(light{{.Index}}_shadowMap, light{{.Index}}_shadowMapSampler, coord);
{{- else if eq .ShadowKind "pcss"}}
    return shadowPcss(light{{.Index}}_shadowMap, light{{.Index}}_shadowMapSampler, coord, mesh.light{{.Index}}_shadowParams.x);
{{- else}}
    return shadowPcf(light{{.Index}}_shadowMap, light{{.Index}}_shadowMapSampler, coord, mesh.light{{.Index}}_shadowParams.x, {{.PcfRadius}});
{{- end}}
{{- end}}
}
{{end}}
fn evaluateLight{{.Index}}(worldPosition: vec3f, normal: vec3f, viewDepth: f32) -> vec3f {
{{- if .Directional}}
    let toLight = -mesh.light{{.Index}}_direction;
    var attenuation = 1.0;
{{- else}}
    let delta = mesh.light{{.Index}}_position - worldPosition;
    let dist = length(delta);
    let toLight = delta / max(dist, 0.0001);
    var attenuation = falloff(dist, mesh.light{{.Index}}_range);
{{- if .Spot}}
    attenuation *= spotEffect(toLight, mesh.light{{.Index}}_direction, mesh.light{{.Index}}_cosInner, mesh.light{{.Index}}_cosOuter);
{{- end}}
{{- end}}
{{- if .Shadowed}}
    attenuation *= shadowLight{{.Index}}(worldPosition + normal * mesh.light{{.Index}}_shadowParams.y, viewDepth);
{{- end}}
    return mesh.light{{.Index}}_color * max(dot(normal, toLight), 0.0) * attenuation;
}
{{end}}
{{- if .Clustered}}
fn shadowAtlasOmni(viewport: vec4f, dir: vec3f, range: f32, bias: f32) -> f32 {
    let a = abs(dir);
    var face = 0;
    var uv = vec2f(0.0);
    var z = 0.0;
    if (a.x >= a.y && a.x >= a.z) {
        z = a.x;
        face = select(1, 0, dir.x > 0.0);
        uv = vec2f(select(-dir.z, dir.z, dir.x > 0.0), -dir.y) / a.x;
    } else if (a.y >= a.z) {
        z = a.y;
        face = select(3, 2, dir.y > 0.0);
        uv = vec2f(dir.x, select(dir.z, -dir.z, dir.y > 0.0)) / a.y;
    } else {
        z = a.z;
        face = select(5, 4, dir.z > 0.0);
        uv = vec2f(select(dir.x, -dir.x, dir.z > 0.0), -dir.y) / a.z;
    }
    let tile = vec2f(f32(face % 3), f32(face / 3));
    let atlasUv = viewport.xy + (tile + uv * 0.5 + 0.5) * viewport.zw / vec2f(3.0, 2.0);
    let near = range * {{.NearScale}};
    let ndc = (range + near) / (range - near) - 2.0 * range * near / ((range - near) * z);
    return textureSampleCompareLevel(shadowAtlas, shadowAtlasSampler, atlasUv, ndc * 0.5 + 0.5 - bias);
}

fn evaluateClusteredLight(index: i32, worldPosition: vec3f, normal: vec3f) -> vec3f {
    let positionRange = textureLoad(clusterLights, vec2i(0, index), 0);
    let colorType = textureLoad(clusterLights, vec2i(1, index), 0);
    let directionOuter = textureLoad(clusterLights, vec2i(2, index), 0);
    let params = textureLoad(clusterLights, vec2i(3, index), 0);
    let delta = positionRange.xyz - worldPosition;
    let dist = length(delta);
    let toLight = delta / max(dist, 0.0001);
    let spot = i32(colorType.w) == {{.SpotType}};
    var attenuation = falloff(dist, positionRange.w);
    if (spot) {
        attenuation *= spotEffect(toLight, directionOuter.xyz, params.x, directionOuter.w);
    }
    if (attenuation <= 0.0) {
        return vec3f(0.0);
    }
{{- if .ClusteredShadows}}
    if (params.y > 0.0) {
        let p = worldPosition + normal * params.w;
        if (spot) {
            let shadowMatrix = mat4x4f(
                textureLoad(clusterLights, vec2i(4, index), 0),
                textureLoad(clusterLights, vec2i(5, index), 0),
                textureLoad(clusterLights, vec2i(6, index), 0),
                textureLoad(clusterLights, vec2i(7, index), 0),
            );
            let projected = shadowMatrix * vec4f(p, 1.0);
            let coord = projected.xyz / projected.w;
            attenuation *= textureSampleCompareLevel(shadowAtlas, shadowAtlasSampler, coord.xy, coord.z - params.z);
        } else {
            let viewport = textureLoad(clusterLights, vec2i(4, index), 0);
            attenuation *= shadowAtlasOmni(viewport, p - positionRange.xyz, positionRange.w, params.z);
        }
    }
{{- end}}
    return colorType.rgb * max(dot(normal, toLight), 0.0) * attenuation;
}

fn evaluateClusteredLights(worldPosition: vec3f, normal: vec3f) -> vec3f {
    var result = vec3f(0.0);
    let cell = floor((worldPosition - mesh.cluster_boundsMin) / mesh.cluster_boundsDelta);
    if (any(cell < vec3f(0.0)) || any(cell >= mesh.cluster_cells)) {
        return result;
    }
    let row = i32(cell.x + cell.y * mesh.cluster_cells.x + cell.z * mesh.cluster_cells.x * mesh.cluster_cells.y);
    let texels = i32(ceil(mesh.cluster_maxLights / 4.0));
    for (var t = 0; t < texels; t++) {
        let indices = textureLoad(clusterCells, vec2i(t, row), 0);
        for (var k = 0; k < 4; k++) {
            let index = i32(indices[k]);
            if (index == 0) {
                return result;
            }
            result += evaluateClusteredLight(index, worldPosition, normal);
        }
    }
    return result;
}
{{end}}
@fragment
fn fragmentMain(input: VertexOutput) -> @location(0) vec4f {
    let baseColor = mesh.material_baseColor * input.color;
    if (baseColor.a < mesh.alpha_ref) {
        discard;
    }
    let normal = normalize(input.worldNormal);
    var lighting = vec3f(0.03);
{{- range .Lights}}
    lighting += evaluateLight{{.Index}}(input.worldPosition, normal, input.viewDepth);
{{- end}}
{{- if .Clustered}}
    lighting += evaluateClusteredLights(input.worldPosition, normal);
{{- end}}
    return vec4f(baseColor.rgb * lighting, baseColor.a);
}
{{end}}`

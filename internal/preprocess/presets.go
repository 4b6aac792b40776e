package preprocess

// Presets maps the closed set of preset names to fixed operator chains, per
// spec.md §6's "Preset chains (fixed)" table. Built once at package init;
// each preset is a distinct Chain value (operators are not shared across
// presets since Gamma owns a LUT Mat).
var Presets map[string]Chain

func init() {
	Presets = map[string]Chain{
		"Normal": {
			NewGamma(0.80),
		},
		"Night": {
			NewGamma(0.65),
			NewGauss(3, 0),
			NewUnsharp(5, 1.0),
		},
		"Fog": {
			NewGamma(0.75),
			NewUnsharp(5, 1.8),
		},
		"Motion": {
			NewGamma(0.80),
			NewLaplacian(1.3, 3),
			NewUnsharp(5, 0.7),
		},
		"IR": {
			NewGamma(0.80),
			NewClutter(ClutterHistory, ClutterVarThr, false),
			NewUnsharp(5, 1.0),
		},
	}
}

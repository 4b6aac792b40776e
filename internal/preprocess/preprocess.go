// Package preprocess composes pure frame-to-frame image operators into an
// ordered chain, selectable either by preset name or by an explicit
// configuration block (config.PreprocessingConfig).
package preprocess

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/edgetrack/pipeline/internal/config"
)

// Operator is a single pure (or, for Clutter, stateful-but-owned) frame
// transform. Apply writes the transformed frame into out; in and out may
// not alias.
type Operator interface {
	Apply(in gocv.Mat, out *gocv.Mat) error
	// Name identifies the operator for logging.
	Name() string
}

// Chain is an ordered sequence of operators applied left to right. An empty
// Chain is the identity operator.
type Chain []Operator

// Apply runs every operator in order, feeding each operator's output as the
// next operator's input. If the chain is empty, out is set to a clone of in
// so callers always own an independent Mat.
func (c Chain) Apply(in gocv.Mat, out *gocv.Mat) error {
	if len(c) == 0 {
		in.CopyTo(out)
		return nil
	}

	cur := in
	owned := false
	for i, op := range c {
		var next gocv.Mat
		if i == len(c)-1 {
			next = *out
		} else {
			next = gocv.NewMat()
		}
		if err := op.Apply(cur, &next); err != nil {
			if owned {
				cur.Close()
			}
			return fmt.Errorf("preprocess: operator %q: %w", op.Name(), err)
		}
		if owned {
			cur.Close()
		}
		cur = next
		owned = i != len(c)-1
	}
	*out = cur
	return nil
}

// Default tuning constants, named so the zero value of each operator's
// config struct documents its behavior (mirrors the teacher's DefaultConfig
// pattern in pkg/mediapipe/processor.go).
const (
	GammaDefault   = 0.75
	UnsharpKsize   = 5
	UnsharpAmount  = 1.0
	DenoiseKsize   = 3
	DenoiseSigma   = 0.0
	LaplaceAlpha   = 1.2
	LaplaceKsize   = 3
	ClutterHistory = 50
	ClutterVarThr  = 25
)

// NewChainFromConfig builds a Chain from a preprocessing config block. If
// Preset is non-empty, every other field is ignored and the matching preset
// chain (see presets.go) is returned verbatim — spec.md §4.B / §8 scenario 6.
func NewChainFromConfig(cfg config.PreprocessingConfig) (Chain, error) {
	if cfg.Preset != "" {
		preset, ok := Presets[cfg.Preset]
		if !ok {
			return nil, fmt.Errorf("preprocess: unknown preset %q", cfg.Preset)
		}
		return preset, nil
	}

	var chain Chain

	// Order follows spec.md §4.B's enumeration (contrast, edge, denoise,
	// deblur, clutter) verbatim — composition is not commutative (property
	// 5), so this order is part of the contract, not an implementation
	// detail.
	if cfg.ContrastEnhance != nil && cfg.ContrastEnhance.Enable {
		chain = append(chain, NewGamma(cfg.ContrastEnhance.Gamma))
	}
	if cfg.EdgeEnhance != nil && cfg.EdgeEnhance.Enable {
		chain = append(chain, NewUnsharp(cfg.EdgeEnhance.Ksize, cfg.EdgeEnhance.Amount))
	}
	if cfg.Denoise != nil && cfg.Denoise.Enable {
		chain = append(chain, NewGauss(cfg.Denoise.Ksize, cfg.Denoise.Sigma))
	}
	if cfg.Deblur != nil && cfg.Deblur.Enable {
		chain = append(chain, NewLaplacian(cfg.Deblur.Alpha, cfg.Deblur.Ks))
	}
	if cfg.ClutterRemoval != nil && cfg.ClutterRemoval.Enable {
		chain = append(chain, NewClutter(cfg.ClutterRemoval.History, cfg.ClutterRemoval.VarThreshold, cfg.ClutterRemoval.DetectShadows))
	}

	return chain, nil
}

// Close releases any resources (e.g. the Clutter operator's background
// model) owned by operators in the chain. Must be called by whichever
// stage owns the chain — never shared across stages (spec.md §9).
func (c Chain) Close() {
	for _, op := range c {
		if closer, ok := op.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

// Package tracker implements the SORT-style multi-object tracker manager:
// per-tick predict, associate, update, birth, age-out, and confirmed-track
// emission.
//
// The tick ordering is grounded on
// banshee-data-velocity.report/internal/lidar/l5tracks/tracking.go's
// Tracker.Update (predict all -> associate -> update matched -> coast
// unmatched -> birth -> cleanup), adapted from that file's 4-state
// world-frame lidar domain to the 7-state image-frame domain here. The
// Hits/HitStreak/TimeSinceUpdate/Age/min_hits/max_age terminology is taken
// directly from other_examples' go-coffee tracker.go, which uses those
// exact names.
package tracker

import (
	"go.uber.org/zap"

	"github.com/edgetrack/pipeline/internal/assoc"
	"github.com/edgetrack/pipeline/internal/detect"
	"github.com/edgetrack/pipeline/internal/kalman"
)

// Config holds SORT tuning parameters (spec.md §4.F).
type Config struct {
	MaxAge       int
	MinHits      int
	IOUThreshold float64

	// GraceWindowEmitsAll gates the startup grace-window emission rule
	// (frame_count <= MinHits emits every live track regardless of hit
	// count). Default true, preserving the behavior spec.md §9's Open
	// Question describes as "preserved... but an implementer may wish to
	// gate it behind a config flag; do not change the default."
	GraceWindowEmitsAll bool
}

// DefaultConfig returns spec.md §4.F's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxAge:              10,
		MinHits:             3,
		IOUThreshold:        0.3,
		GraceWindowEmitsAll: true,
	}
}

// TrackOutput is a reconstructed, confirmed track box for a tick
// (spec.md §3). It carries no frame ID or capture time; pipeline.Result
// pairs the tracks with those.
type TrackOutput struct {
	X1, Y1, X2, Y2 float64
	ID             uint64
}

// track is one live track: its Kalman filter plus lifecycle counters the
// filter itself doesn't own.
type track struct {
	id     uint64
	filter *kalman.BoxFilter
}

// Manager owns an ordered slice of live tracks, a frame counter, and an
// instance-scoped monotonic ID counter — never a package-level counter
// (spec.md §9's "re-express as an instance-scoped monotonic counter").
type Manager struct {
	cfg        Config
	log        *zap.Logger
	tracks     []*track
	frameCount int
	nextID     uint64
}

// New constructs a Manager. A nil logger is replaced with zap.NewNop().
func New(cfg Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cfg: cfg,
		log: log.With(zap.String("component", "tracker")),
	}
}

// Update runs one full tick (spec.md §4.F steps 1-7): predict all tracks,
// drop numerically-degenerate ones, associate against detections, update
// matched tracks, birth unmatched detections as new tracks, age out stale
// tracks, and emit the confirmed-track output array. The tracker manager
// is called every tick even with zero detections, so existing tracks keep
// aging (spec.md §4.H).
func (m *Manager) Update(detections []detect.Detection) []TrackOutput {
	m.frameCount++

	// Step 2: predict every live track; mark non-finite ones for deletion
	// before association.
	predictedBoxes := make([]assoc.Box, 0, len(m.tracks))
	survivors := m.tracks[:0:0]
	for _, t := range m.tracks {
		t.filter.Predict()
		if !t.filter.IsFinite() {
			m.log.Debug("dropping track with non-finite predicted state", zap.Uint64("track_id", t.id))
			continue
		}
		x1, y1, x2, y2 := t.filter.GetState()
		predictedBoxes = append(predictedBoxes, assoc.Box{X1: x1, Y1: y1, X2: x2, Y2: y2})
		survivors = append(survivors, t)
	}
	m.tracks = survivors

	// Step 3: associate.
	detectionBoxes := make([]assoc.Box, len(detections))
	for i, d := range detections {
		detectionBoxes[i] = assoc.Box{X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2}
	}
	ious := assoc.IoUMatrix(predictedBoxes, detectionBoxes)
	matches, unmatchedDetections, unmatchedTracks := assoc.Associate(ious, m.cfg.IOUThreshold)
	_ = unmatchedTracks // unmatched tracks simply aren't updated this tick; handled implicitly below

	// Step 4: update matched tracks.
	for _, mtc := range matches {
		trackIdx, detIdx := mtc[0], mtc[1]
		d := detections[detIdx]
		m.tracks[trackIdx].filter.Update(d.X1, d.Y1, d.X2, d.Y2)
	}

	// Step 5: birth a new track for every unmatched detection.
	for _, detIdx := range unmatchedDetections {
		d := detections[detIdx]
		m.nextID++
		f := kalman.New((d.X1+d.X2)/2, (d.Y1+d.Y2)/2, (d.X2-d.X1)*(d.Y2-d.Y1), (d.X2-d.X1)/((d.Y2-d.Y1)+1e-8))
		// The seeding detection counts as the track's first hit, so a box
		// repeated for MinHits consecutive ticks is confirmed on tick MinHits.
		f.Age, f.Hits, f.HitStreak = 1, 1, 1
		m.tracks = append(m.tracks, &track{
			id:     m.nextID,
			filter: f,
		})
	}

	// Step 6: age out tracks that have been unmatched too long.
	kept := m.tracks[:0:0]
	for _, t := range m.tracks {
		if t.filter.TimeSinceUpdate > m.cfg.MaxAge {
			m.log.Debug("deleting aged-out track", zap.Uint64("track_id", t.id))
			continue
		}
		kept = append(kept, t)
	}
	m.tracks = kept

	// Step 7: emit confirmed tracks.
	var out []TrackOutput
	for _, t := range m.tracks {
		confirmed := t.filter.Hits >= m.cfg.MinHits
		if m.cfg.GraceWindowEmitsAll && m.frameCount <= m.cfg.MinHits {
			confirmed = true
		}
		if !confirmed {
			continue
		}

		x1, y1, x2, y2 := t.filter.GetState()
		if x2 <= x1 || y2 <= y1 {
			continue // degenerate box, suppressed this tick
		}

		out = append(out, TrackOutput{X1: x1, Y1: y1, X2: x2, Y2: y2, ID: t.id})
	}

	return out
}

// FrameCount returns the number of ticks processed so far.
func (m *Manager) FrameCount() int { return m.frameCount }

// LiveTracks returns the number of tracks currently held, confirmed or not.
func (m *Manager) LiveTracks() int { return len(m.tracks) }

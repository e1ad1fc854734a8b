package viewport

// LOD is the level of rendering and interaction detail selected for an
// element at the current zoom. The engine only exposes the tier; what a
// renderer draws per tier is its own business.
type LOD int

const (
	LODMinimal LOD = iota
	LODLow
	LODMedium
	LODHigh
)

// Scale thresholds for the LOD tiers.
const (
	lodHighScale   = 0.8
	lodMediumScale = 0.4
	lodLowScale    = 0.2
)

// String returns the tier name for display.
func (l LOD) String() string {
	switch l {
	case LODHigh:
		return "high"
	case LODMedium:
		return "medium"
	case LODLow:
		return "low"
	case LODMinimal:
		return "minimal"
	default:
		return "unknown"
	}
}

// LevelForScale selects the LOD tier for a zoom scale.
func LevelForScale(scale float64) LOD {
	switch {
	case scale >= lodHighScale:
		return LODHigh
	case scale >= lodMediumScale:
		return LODMedium
	case scale >= lodLowScale:
		return LODLow
	default:
		return LODMinimal
	}
}

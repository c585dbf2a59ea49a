package notify

import "github.com/1broseidon/xwbridge/internal/surface"

// Method names understood by the UI engine.
const (
	MethodNewX11Surface     = "new_x11_surface"
	MethodMapX11Surface     = "map_x11_surface"
	MethodUnmapX11Surface   = "unmap_x11_surface"
	MethodDestroyX11Surface = "destroy_x11_surface"
)

// Geometry is the wire form of a window rectangle.
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewX11Surface announces a freshly created legacy window.
type NewX11Surface struct {
	X11SurfaceID surface.ID `json:"x11SurfaceId"`
}

// MapX11Surface announces that a legacy window became visible.
type MapX11Surface struct {
	X11SurfaceID     surface.ID           `json:"x11SurfaceId"`
	SurfaceID        surface.NativeHandle `json:"surfaceId"`
	OverrideRedirect bool                 `json:"overrideRedirect"`
	Geometry         Geometry             `json:"geometry"`
	Parent           *surface.ID          `json:"parent"`
	Title            *string              `json:"title"`
	WindowClass      *string              `json:"windowClass"`
	Instance         *string              `json:"instance"`
	StartupID        *string              `json:"startupId"`
}

// UnmapX11Surface announces that a legacy window was hidden.
type UnmapX11Surface struct {
	X11SurfaceID surface.ID `json:"x11SurfaceId"`
}

// DestroyX11Surface announces that a legacy window is gone for good.
type DestroyX11Surface struct {
	X11SurfaceID surface.ID `json:"x11SurfaceId"`
}

// NewSurface builds the new_x11_surface payload.
func NewSurface(id surface.ID) NewX11Surface {
	return NewX11Surface{X11SurfaceID: id}
}

// MapSurface builds the map_x11_surface payload from a registry snapshot.
// The origin is always reported as (0,0); windows are never self-placed.
func MapSurface(s surface.Surface, parent *surface.ID) MapX11Surface {
	geo := s.Geometry.AtOrigin()
	return MapX11Surface{
		X11SurfaceID:     s.ID,
		SurfaceID:        s.Native,
		OverrideRedirect: s.OverrideRedirect,
		Geometry: Geometry{
			X:      geo.X,
			Y:      geo.Y,
			Width:  geo.Width,
			Height: geo.Height,
		},
		Parent:      parent,
		Title:       optional(s.Title),
		WindowClass: optional(s.Class),
		Instance:    optional(s.Instance),
		StartupID:   optional(s.StartupID),
	}
}

// UnmapSurface builds the unmap_x11_surface payload.
func UnmapSurface(id surface.ID) UnmapX11Surface {
	return UnmapX11Surface{X11SurfaceID: id}
}

// DestroySurface builds the destroy_x11_surface payload.
func DestroySurface(id surface.ID) DestroyX11Surface {
	return DestroyX11Surface{X11SurfaceID: id}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

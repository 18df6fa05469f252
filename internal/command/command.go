// Package command defines the closed set of user intents the viewer reacts to
// and a typed dispatcher that routes them to subscribed components.
package command

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapview/internal/engine"
)

// Command is implemented only by the types in this package.
type Command interface {
	Kind() string
	command()
}

// ActivateTool toggles the named tool.
type ActivateTool struct{ ID string }

// DeactivateTools releases whichever tool is active.
type DeactivateTools struct{}

// RefreshLayers re-fetches the layer list.
type RefreshLayers struct{}

// LayerAdded is sent when the add-layer flow finished creating a layer.
type LayerAdded struct{ ID string }

// ToggleLayer shows or hides a remote layer.
type ToggleLayer struct {
	ID      string
	Visible bool
}

// DeleteLayer deletes a remote layer.
type DeleteLayer struct{ ID string }

// Search runs a free-text feature search.
type Search struct{ Query string }

// Click is a single click at a map coordinate (surface projection).
type Click struct{ At orb.Point }

// DoubleClick is a double click at a map coordinate.
type DoubleClick struct{ At orb.Point }

// PointerMove is a pointer position over the map.
type PointerMove struct{ At orb.Point }

// PointerLeave is sent when the pointer leaves the viewport.
type PointerLeave struct{}

// KeyDown is a key press, named like DOM key values ("Escape").
type KeyDown struct{ Key string }

// ZoomBy changes the zoom level by Delta.
type ZoomBy struct{ Delta float64 }

// GoHome returns the camera to the home view.
type GoHome struct{}

// ClosePopup hides the feature-info popup.
type ClosePopup struct{}

// SetDrawType switches the geometry the drawing tool produces.
type SetDrawType struct{ Type engine.GeometryType }

// ClearDrawings removes every finished drawing.
type ClearDrawings struct{}

func (ActivateTool) Kind() string    { return "activate_tool" }
func (DeactivateTools) Kind() string { return "deactivate_tools" }
func (RefreshLayers) Kind() string   { return "refresh_layers" }
func (LayerAdded) Kind() string      { return "layer_added" }
func (ToggleLayer) Kind() string     { return "toggle_layer" }
func (DeleteLayer) Kind() string     { return "delete_layer" }
func (Search) Kind() string          { return "search" }
func (Click) Kind() string           { return "click" }
func (DoubleClick) Kind() string     { return "double_click" }
func (PointerMove) Kind() string     { return "pointer_move" }
func (PointerLeave) Kind() string    { return "pointer_leave" }
func (KeyDown) Kind() string         { return "key_down" }
func (ZoomBy) Kind() string          { return "zoom_by" }
func (GoHome) Kind() string          { return "go_home" }
func (ClosePopup) Kind() string      { return "close_popup" }
func (SetDrawType) Kind() string     { return "set_draw_type" }
func (ClearDrawings) Kind() string   { return "clear_drawings" }

func (ActivateTool) command()    {}
func (DeactivateTools) command() {}
func (RefreshLayers) command()   {}
func (LayerAdded) command()      {}
func (ToggleLayer) command()     {}
func (DeleteLayer) command()     {}
func (Search) command()          {}
func (Click) command()           {}
func (DoubleClick) command()     {}
func (PointerMove) command()     {}
func (PointerLeave) command()    {}
func (KeyDown) command()         {}
func (ZoomBy) command()          {}
func (GoHome) command()          {}
func (ClosePopup) command()      {}
func (SetDrawType) command()     {}
func (ClearDrawings) command()   {}

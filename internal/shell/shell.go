// Package shell is a line-oriented driver for the viewer. Each input line is
// translated into a command for the app; state is printed back as text.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapview/internal/app"
	"github.com/joeblew999/plat-mapview/internal/command"
	"github.com/joeblew999/plat-mapview/internal/engine"
	"github.com/joeblew999/plat-mapview/internal/notify"
)

// ErrUsage is returned for lines that do not parse.
var ErrUsage = errors.New("usage")

const help = `commands:
  tool <measure|draw|search|layers|add-layer>   toggle a tool
  off                                           deactivate the active tool
  click <lon> <lat>    dblclick <lon> <lat>     map clicks
  move <lon> <lat>     leave                    pointer
  key <name>                                    key press, e.g. key Escape
  layers                                        refresh and list layers
  toggle <id> on|off   delete <id>   added <id> layer actions
  search <text>        clear                    feature search
  draw <point|line|polygon>   draw clear        drawing tool type, clear drawings
  zoom <+n|-n>   home   share   popup   close   map controls
  tools   state   measure   drawings   help   quit`

// Shell reads commands and prints results.
type Shell struct {
	app       *app.App
	out       io.Writer
	bus       *notify.Bus
	notes     chan notify.Notification
	shareBase string
}

// New creates a shell over a. When bus is non-nil its notifications are
// printed after every command.
func New(a *app.App, out io.Writer, bus *notify.Bus, shareBase string) *Shell {
	s := &Shell{app: a, out: out, bus: bus, shareBase: shareBase}
	if bus != nil {
		s.notes = bus.Subscribe()
	}
	return s
}

// Close stops printing notifications and releases the bus subscription.
// It is safe to call more than once.
func (s *Shell) Close() {
	if s.bus == nil || s.notes == nil {
		return
	}
	s.bus.Unsubscribe(s.notes)
	s.notes = nil
}

// Run executes lines from in until EOF, "quit" or ctx is done.
func (s *Shell) Run(ctx context.Context, in io.Reader, prompt bool) error {
	sc := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(s.out, "> ")
		}
		if !sc.Scan() {
			return sc.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		quit, err := s.Exec(ctx, sc.Text())
		if err != nil {
			s.printErr(err)
		}
		if quit {
			return nil
		}
	}
}

// Exec runs one line. It reports whether the shell should stop.
func (s *Shell) Exec(ctx context.Context, line string) (quit bool, err error) {
	defer s.flush()

	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(s.out, help)
		return false, nil
	case "tool":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: tool <id>", ErrUsage)
		}
		return false, s.dispatch(ctx, command.ActivateTool{ID: args[0]})
	case "off":
		return false, s.dispatch(ctx, command.DeactivateTools{})
	case "click", "dblclick", "move":
		at, err := parsePoint(args)
		if err != nil {
			return false, err
		}
		at = engine.FromLonLat(at, s.app.Surface.Projection())
		switch name {
		case "click":
			return false, s.dispatch(ctx, command.Click{At: at})
		case "dblclick":
			return false, s.dispatch(ctx, command.DoubleClick{At: at})
		default:
			return false, s.dispatch(ctx, command.PointerMove{At: at})
		}
	case "leave":
		return false, s.dispatch(ctx, command.PointerLeave{})
	case "key":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: key <name>", ErrUsage)
		}
		return false, s.dispatch(ctx, command.KeyDown{Key: args[0]})
	case "layers":
		err := s.dispatch(ctx, command.RefreshLayers{})
		s.printLayers()
		return false, err
	case "toggle":
		if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
			return false, fmt.Errorf("%w: toggle <id> on|off", ErrUsage)
		}
		return false, s.dispatch(ctx, command.ToggleLayer{ID: args[0], Visible: args[1] == "on"})
	case "delete":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: delete <id>", ErrUsage)
		}
		return false, s.dispatch(ctx, command.DeleteLayer{ID: args[0]})
	case "added":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: added <id>", ErrUsage)
		}
		return false, s.dispatch(ctx, command.LayerAdded{ID: args[0]})
	case "search":
		err := s.dispatch(ctx, command.Search{Query: strings.Join(args, " ")})
		if err == nil {
			fmt.Fprintf(s.out, "%d result(s) highlighted\n", len(s.app.Search.Highlighted()))
		}
		return false, err
	case "clear":
		s.app.Search.Clear()
		return false, nil
	case "draw":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: draw <point|line|polygon|clear>", ErrUsage)
		}
		if strings.EqualFold(args[0], "clear") {
			return false, s.dispatch(ctx, command.ClearDrawings{})
		}
		typ, err := engine.ParseGeometryType(args[0])
		if err != nil {
			return false, fmt.Errorf("%w: draw <point|line|polygon|clear>: %v", ErrUsage, err)
		}
		err = s.dispatch(ctx, command.SetDrawType{Type: typ})
		if err == nil {
			fmt.Fprintf(s.out, "drawing %s\n", strings.ToLower(string(typ)))
		}
		return false, err
	case "drawings":
		fmt.Fprintf(s.out, "%d drawing(s)\n", len(s.app.Drawing.Features()))
		return false, nil
	case "zoom":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: zoom <delta>", ErrUsage)
		}
		d, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return false, fmt.Errorf("%w: zoom <delta>: %v", ErrUsage, err)
		}
		return false, s.dispatch(ctx, command.ZoomBy{Delta: d})
	case "home":
		return false, s.dispatch(ctx, command.GoHome{})
	case "share":
		fmt.Fprintln(s.out, s.app.Surface.ShareURL(s.shareBase))
		return false, nil
	case "popup":
		s.printPopup()
		return false, nil
	case "close":
		return false, s.dispatch(ctx, command.ClosePopup{})
	case "tools":
		for _, st := range s.app.Tools.Statuses() {
			mark := " "
			if st.Active {
				mark = "*"
			}
			fmt.Fprintf(s.out, "%s %s\n", mark, st.ID)
		}
		return false, nil
	case "measure":
		s.printMeasure()
		return false, nil
	case "state":
		s.printState()
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown command %q (try help)", ErrUsage, name)
	}
}

func (s *Shell) dispatch(ctx context.Context, cmd command.Command) error {
	err := s.app.Dispatch(ctx, cmd)
	s.app.Wait()
	return err
}

// flush prints queued notifications without blocking.
func (s *Shell) flush() {
	if s.notes == nil {
		return
	}
	for {
		select {
		case n := <-s.notes:
			fmt.Fprintln(s.out, n)
		default:
			return
		}
	}
}

func (s *Shell) printErr(err error) {
	if app.IsUserError(err) || errors.Is(err, ErrUsage) {
		fmt.Fprintf(s.out, "! %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "error: %v\n", err)
}

func (s *Shell) printLayers() {
	v := s.app.Layers.View()
	if v.Message != "" {
		fmt.Fprintln(s.out, v.Message)
	}
	for _, l := range v.Layers {
		mark := "[ ]"
		if l.Visible {
			mark = "[x]"
		}
		fmt.Fprintf(s.out, "%s %-4s %-20s %s\n", mark, l.ID, l.Name, l.Color)
	}
}

func (s *Shell) printPopup() {
	p := s.app.Surface.Popup()
	if !p.Visible() {
		fmt.Fprintln(s.out, "popup hidden")
		return
	}
	for _, sec := range p.Sections {
		fmt.Fprintf(s.out, "%s %s\n", sec.Layer, sec.FeatureID)
		for _, r := range sec.Rows {
			fmt.Fprintf(s.out, "  %s: %s\n", r.Key, r.Value)
		}
	}
}

func (s *Shell) printMeasure() {
	v := s.app.Measure.View()
	if !s.app.Measure.Active() {
		fmt.Fprintln(s.out, "measure inactive")
		return
	}
	fmt.Fprintf(s.out, "state: %s  total: %s\n", v.State, v.Total)
	if v.Help.Visible {
		fmt.Fprintf(s.out, "hint: %s\n", v.Help.Text)
	}
	for _, f := range v.Frozen {
		fmt.Fprintf(s.out, "label: %s\n", f.Text)
	}
}

func (s *Shell) printState() {
	snap := s.app.Surface.Snapshot()
	active, _ := s.app.Tools.Active()
	fmt.Fprintf(s.out, "center: %.5f, %.5f  zoom: %.2f\n", snap.Center.Lat(), snap.Center.Lon(), snap.Zoom)
	fmt.Fprintf(s.out, "tool: %s  role: %s\n", orNone(active), s.app.Session.Role())
	if snap.Readout != "" {
		fmt.Fprintln(s.out, snap.Readout)
	}
	for _, o := range snap.Overlays {
		fmt.Fprintf(s.out, "overlay %s %s %s\n", o.Key, o.Kind, o.Name)
	}
	if snap.Popup.Visible() {
		fmt.Fprintf(s.out, "popup: %d section(s)\n", len(snap.Popup.Sections))
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func parsePoint(args []string) (orb.Point, error) {
	if len(args) != 2 {
		return orb.Point{}, fmt.Errorf("%w: expected <lon> <lat>", ErrUsage)
	}
	lon, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("%w: lon: %v", ErrUsage, err)
	}
	lat, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("%w: lat: %v", ErrUsage, err)
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return orb.Point{}, fmt.Errorf("%w: coordinates out of range", ErrUsage)
	}
	return orb.Point{lon, lat}, nil
}

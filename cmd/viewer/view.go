package main

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"shadowchase.ai/internal/observerproto"
	"shadowchase.ai/internal/sim/geom"
)

// canvas is the part of tcell.Screen the renderer draws on.
type canvas interface {
	Size() (int, int)
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
}

// viewport maps world bounds onto a grid of terminal cells. The bottom rows
// are reserved for the status line. World +Y points up the screen.
type viewport struct {
	minX, minY, maxX, maxY float64
	cols, rows             int
}

const statusRows = 2

func newViewport(bounds [4]float64, w, h int) viewport {
	rows := h - statusRows
	if rows < 1 {
		rows = 1
	}
	if w < 1 {
		w = 1
	}
	return viewport{minX: bounds[0], minY: bounds[1], maxX: bounds[2], maxY: bounds[3], cols: w, rows: rows}
}

func (v viewport) toCell(p [2]float64) (int, int, bool) {
	if v.maxX <= v.minX || v.maxY <= v.minY {
		return 0, 0, false
	}
	fx := (p[0] - v.minX) / (v.maxX - v.minX)
	fy := (v.maxY - p[1]) / (v.maxY - v.minY)
	x := int(math.Floor(fx * float64(v.cols)))
	y := int(math.Floor(fy * float64(v.rows)))
	if x == v.cols && fx <= 1 {
		x--
	}
	if y == v.rows && fy <= 1 {
		y--
	}
	if x < 0 || y < 0 || x >= v.cols || y >= v.rows {
		return 0, 0, false
	}
	return x, y, true
}

// center returns the world point at the middle of a cell.
func (v viewport) center(x, y int) geom.Vec2 {
	wx := v.minX + (float64(x)+0.5)/float64(v.cols)*(v.maxX-v.minX)
	wy := v.maxY - (float64(y)+0.5)/float64(v.rows)*(v.maxY-v.minY)
	return geom.V(wx, wy)
}

var (
	styleFloor    = tcell.StyleDefault
	styleLit      = tcell.StyleDefault.Background(tcell.NewRGBColor(70, 60, 0))
	styleObstacle = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleWaypoint = tcell.StyleDefault.Foreground(tcell.ColorDarkCyan)
	styleTarget   = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleDead     = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	stylePursuer  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleFrozen   = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	styleStatus   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Reverse(true)
)

func blocked(boot observerproto.BootstrapResponse, p geom.Vec2) bool {
	for _, r := range boot.Obstacles.Rects {
		if p.X >= r[0] && p.X <= r[2] && p.Y >= r[1] && p.Y <= r[3] {
			return true
		}
	}
	for _, c := range boot.Obstacles.Circles {
		if p.Dist(geom.V(c[0], c[1])) <= c[2] {
			return true
		}
	}
	return false
}

func lit(lights []observerproto.LightState, p geom.Vec2) bool {
	for _, l := range lights {
		if !l.Active {
			continue
		}
		if l.Kind == "GLOBAL" {
			return true
		}
		lp := geom.V(l.Pos[0], l.Pos[1])
		d := p.Sub(lp)
		if d.Len() > l.Radius {
			continue
		}
		if l.Angle >= 360 || d.LenSq() == 0 || geom.AngleDeg(geom.Heading(l.FacingDeg), d) <= l.Angle/2 {
			return true
		}
	}
	return false
}

// render draws one frame. A nil tick draws only the static map.
func render(c canvas, boot observerproto.BootstrapResponse, tick *observerproto.TickMsg, status string) {
	w, h := c.Size()
	v := newViewport(boot.WorldParams.Bounds, w, h)

	lights := boot.Lights
	if tick != nil {
		lights = tick.Lights
	}
	for y := 0; y < v.rows; y++ {
		for x := 0; x < v.cols; x++ {
			p := v.center(x, y)
			switch {
			case blocked(boot, p):
				c.SetContent(x, y, '#', nil, styleObstacle)
			case lit(lights, p):
				c.SetContent(x, y, ' ', nil, styleLit)
			default:
				c.SetContent(x, y, ' ', nil, styleFloor)
			}
		}
	}

	put := func(p [2]float64, r rune, st tcell.Style) {
		if x, y, ok := v.toCell(p); ok {
			c.SetContent(x, y, r, nil, st)
		}
	}
	line := ""
	if tick != nil {
		for _, pu := range tick.Pursuers {
			for _, wp := range pu.Waypoints {
				put(wp, '.', styleWaypoint)
			}
		}
		for _, l := range tick.Lights {
			if l.Kind != "GLOBAL" {
				put(l.Pos, '*', styleLit.Foreground(tcell.ColorYellow))
			}
		}
		for _, pu := range tick.Pursuers {
			st := stylePursuer
			if pu.Frozen {
				st = styleFrozen
			}
			put(pu.Pos, 'P', st)
		}
		if tick.Target.Alive {
			put(tick.Target.Pos, '@', styleTarget)
		} else {
			put(tick.Target.Pos, 'X', styleDead)
		}
		line = fmt.Sprintf("%s tick=%d hp=%.0f/%.0f pursuers=%d", boot.WorldID, tick.Tick, tick.Target.Health, tick.Target.MaxHealth, len(tick.Pursuers))
	} else {
		line = fmt.Sprintf("%s waiting for ticks", boot.WorldID)
	}

	drawText(c, 0, v.rows, w, line, styleStatus)
	drawText(c, 0, v.rows+1, w, status, tcell.StyleDefault)
}

func drawText(c canvas, x, y, w int, s string, st tcell.Style) {
	_, h := c.Size()
	if y >= h {
		return
	}
	i := 0
	for _, r := range s {
		if x+i >= w {
			return
		}
		c.SetContent(x+i, y, r, nil, st)
		i++
	}
	for ; x+i < w; i++ {
		c.SetContent(x+i, y, ' ', nil, st)
	}
}

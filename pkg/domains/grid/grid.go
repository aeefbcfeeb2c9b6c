// Package grid implements a bounded grid world: an agent moves between free
// cells in fixed directions, paying the distance travelled.
package grid

import (
	"fmt"
	"math"
	"strings"

	"github.com/openfroyo/statesearch/pkg/search"
)

// Position is a cell coordinate. Y grows downwards.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// ID implements search.State.
func (p Position) ID() string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

// String implements fmt.Stringer.
func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Distance returns the Euclidean distance between p and q.
func (p Position) Distance(q Position) float64 {
	return math.Hypot(float64(p.X-q.X), float64(p.Y-q.Y))
}

// Direction is a move direction.
type Direction int

const (
	East Direction = iota
	NorthEast
	North
	NorthWest
	West
	SouthWest
	South
	SouthEast
)

var directionNames = [...]string{"east", "north-east", "north", "north-west", "west", "south-west", "south", "south-east"}

var directionDeltas = [...]Position{
	{1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1}, {0, 1}, {1, 1},
}

// String returns the direction name.
func (d Direction) String() string {
	if d < East || d > SouthEast {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return directionNames[d]
}

// ParseDirection parses a direction name.
func ParseDirection(name string) (Direction, error) {
	for i, n := range directionNames {
		if n == strings.ToLower(name) {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", name)
}

// FourWay are the axis-aligned directions.
var FourWay = []Direction{East, North, West, South}

// EightWay adds the diagonals.
var EightWay = []Direction{East, NorthEast, North, NorthWest, West, SouthWest, South, SouthEast}

// World is a rectangular grid with blocked cells.
type World struct {
	width, height int
	blocked       map[Position]bool
}

// NewWorld creates an empty width x height world.
func NewWorld(width, height int) *World {
	return &World{width: width, height: height, blocked: make(map[Position]bool)}
}

// ParseWorld reads a world from rows of text. '#' marks a blocked cell,
// 'S' the start and 'G' the goal; any other character is free.
func ParseWorld(rows []string) (w *World, start, goal Position, err error) {
	if len(rows) == 0 {
		return nil, start, goal, fmt.Errorf("empty world map")
	}
	width := len(rows[0])
	w = NewWorld(width, len(rows))
	var haveStart, haveGoal bool
	for y, row := range rows {
		if len(row) != width {
			return nil, start, goal, fmt.Errorf("row %d has width %d, want %d", y, len(row), width)
		}
		for x, c := range row {
			switch c {
			case '#':
				w.Block(Position{x, y})
			case 'S':
				start, haveStart = Position{x, y}, true
			case 'G':
				goal, haveGoal = Position{x, y}, true
			}
		}
	}
	if !haveStart || !haveGoal {
		return nil, start, goal, fmt.Errorf("world map needs one S and one G")
	}
	return w, start, goal, nil
}

// Block marks p as blocked.
func (w *World) Block(p Position) {
	w.blocked[p] = true
}

// Width returns the number of columns.
func (w *World) Width() int { return w.width }

// Height returns the number of rows.
func (w *World) Height() int { return w.height }

// Contains reports whether p is a free cell inside the world.
func (w *World) Contains(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < w.width && p.Y < w.height && !w.blocked[p]
}

// Operators returns one Move per direction.
func (w *World) Operators(dirs []Direction) []search.Operator {
	ops := make([]search.Operator, 0, len(dirs))
	for _, d := range dirs {
		ops = append(ops, Move{World: w, Direction: d})
	}
	return ops
}

// Render draws the world with the given path marked by '*'.
func (w *World) Render(start, goal Position, path []Position) string {
	onPath := make(map[Position]bool, len(path))
	for _, p := range path {
		onPath[p] = true
	}
	var b strings.Builder
	for y := 0; y < w.height; y++ {
		for x := 0; x < w.width; x++ {
			p := Position{x, y}
			switch {
			case p == start:
				b.WriteByte('S')
			case p == goal:
				b.WriteByte('G')
			case w.blocked[p]:
				b.WriteByte('#')
			case onPath[p]:
				b.WriteByte('*')
			default:
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Move moves one cell in a direction.
type Move struct {
	World     *World
	Direction Direction
}

// Name returns the direction name.
func (m Move) Name() string {
	return m.Direction.String()
}

// Apply returns the neighbouring cell if it is free.
func (m Move) Apply(s search.State) (search.State, bool) {
	p, ok := s.(Position)
	if !ok {
		return nil, false
	}
	d := directionDeltas[m.Direction]
	next := Position{p.X + d.X, p.Y + d.Y}
	if !m.World.Contains(next) {
		return nil, false
	}
	return next, true
}

// Cost returns the distance travelled, at least 1.
func (m Move) Cost(s, succ search.State) float64 {
	from, _ := s.(Position)
	to, _ := succ.(Position)
	return math.Max(1, from.Distance(to))
}

// NewProblem creates the problem of reaching goal from start.
func NewProblem(w *World, start, goal Position, dirs []Direction) *search.BasicProblem {
	return search.NewProblem(start, w.Operators(dirs), func(s search.State) bool {
		p, ok := s.(Position)
		return ok && p == goal
	})
}

// Euclidean estimates the straight-line distance to goal. It is consistent
// for both four and eight directions.
func Euclidean(goal Position) search.Heuristic {
	return search.HeuristicFunc(func(s search.State) float64 {
		p, _ := s.(Position)
		return p.Distance(goal)
	})
}

// Manhattan estimates |dx|+|dy| to goal. It is consistent for FourWay only;
// with diagonals it overestimates.
func Manhattan(goal Position) search.Heuristic {
	return search.HeuristicFunc(func(s search.State) float64 {
		p, _ := s.(Position)
		return math.Abs(float64(p.X-goal.X)) + math.Abs(float64(p.Y-goal.Y))
	})
}

// Path returns the positions visited by a solution, start included.
func Path(sol *search.Solution) []Position {
	if sol == nil {
		return nil
	}
	nodes := sol.Node().Path()
	path := make([]Position, 0, len(nodes))
	for _, n := range nodes {
		if p, ok := n.State().(Position); ok {
			path = append(path, p)
		}
	}
	return path
}

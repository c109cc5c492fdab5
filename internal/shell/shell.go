// Package shell is the line-oriented command interface to a running
// simulation.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"parking-sim/internal/geo"
	"parking-sim/internal/parking"
	"parking-sim/internal/sim"
)

// ErrQuit is returned by Execute for the quit command.
var ErrQuit = errors.New("quit")

const (
	defaultStep = 1.0 / 60

	// maxTickCount is ten simulated minutes at the default step.
	maxTickCount = 10 * 60 * 60
)

type Shell struct {
	runner  *sim.Runner
	scanner *bufio.Scanner
	out     io.Writer
}

func NewShell(runner *sim.Runner, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		runner:  runner,
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

// Run reads commands until input ends, quit is entered or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if !s.scanner.Scan() {
			return s.scanner.Err()
		}

		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}

		if err := s.Execute(ctx, input); errors.Is(err, ErrQuit) {
			return nil
		}
	}
	return nil
}

// Execute runs one command line. Command failures are printed, not
// returned; only ErrQuit comes back.
func (s *Shell) Execute(ctx context.Context, input string) error {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "scenarios":
		s.handleScenarios()
	case "scenario":
		s.handleScenario(ctx, parts)
	case "play":
		s.printPlaying(s.runner.Play())
	case "pause":
		s.printPlaying(s.runner.Pause())
	case "toggle":
		s.printPlaying(s.runner.Toggle())
	case "tick":
		s.handleTick(ctx, parts)
	case "status":
		s.printStats(s.runner.Stats())
	case "spaces":
		s.handleSpaces()
	case "vehicles":
		s.handleVehicles()
	case "spawn":
		s.handleSpawn(ctx, parts)
	case "depart":
		s.handleDepart(ctx, parts)
	case "help":
		s.handleHelp()
	case "quit", "exit":
		return ErrQuit
	default:
		fmt.Fprintf(s.out, "Unknown command: %s\n", parts[0])
	}
	return nil
}

func (s *Shell) handleScenarios() {
	current := s.runner.Stats().Scenario
	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tName\tSpaces\tVehicles\t")
	for _, sc := range s.runner.Scenarios() {
		marker := ""
		if sc.ID == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%d\t%d\t\n", sc.ID, marker, sc.Name, sc.TotalSpaces(), len(sc.Vehicles))
	}
	w.Flush()
}

func (s *Shell) handleScenario(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		fmt.Fprintln(s.out, "Usage: scenario <id>")
		return
	}
	if !s.runner.SelectScenario(ctx, parts[1]) {
		fmt.Fprintf(s.out, "Unknown or invalid scenario: %s\n", parts[1])
		return
	}
	stats := s.runner.Stats()
	fmt.Fprintf(s.out, "Selected scenario %s with %d spaces and %d vehicles\n",
		stats.Scenario, stats.TotalSpaces, stats.Vehicles)
}

func (s *Shell) handleTick(ctx context.Context, parts []string) {
	if len(parts) > 3 {
		fmt.Fprintln(s.out, "Usage: tick [count] [dt]")
		return
	}

	count, dt := 1, defaultStep
	if len(parts) >= 2 {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n <= 0 {
			fmt.Fprintln(s.out, "Invalid tick count")
			return
		}
		if n > maxTickCount {
			fmt.Fprintf(s.out, "Tick count must be at most %d\n", maxTickCount)
			return
		}
		count = n
	}
	if len(parts) == 3 {
		d, err := strconv.ParseFloat(parts[2], 64)
		if err != nil || !(d > 0) || !geo.Finite(d) {
			fmt.Fprintln(s.out, "Invalid time delta")
			return
		}
		dt = d
	}

	stats, err := s.runner.Step(ctx, count, dt)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %s\n", err)
		return
	}
	s.printStats(stats)
}

func (s *Shell) handleSpaces() {
	frame := s.runner.Frame()
	if len(frame.Spaces) == 0 {
		fmt.Fprintln(s.out, "No scenario loaded")
		return
	}

	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "No.\tLabel\tX\tZ\tOccupied\t")
	for _, sp := range frame.Spaces {
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%.2f\t%t\t\n", sp.Number, sp.Label, sp.X, sp.Z, sp.Occupied)
	}
	w.Flush()
}

func (s *Shell) handleVehicles() {
	frame := s.runner.Frame()
	if len(frame.Vehicles) == 0 {
		fmt.Fprintln(s.out, "No vehicles")
		return
	}

	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKind\tColor\tState\tX\tZ\tSpace\t")
	for _, v := range frame.Vehicles {
		space := "-"
		if v.Space > 0 {
			space = strconv.Itoa(v.Space)
		}
		state := string(v.State)
		if v.Departing {
			state = "leaving"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%.2f\t%s\t\n", v.ID, v.Kind, v.Color, state, v.X, v.Z, space)
	}
	w.Flush()
}

func (s *Shell) handleSpawn(ctx context.Context, parts []string) {
	if len(parts) != 4 && len(parts) != 5 {
		fmt.Fprintln(s.out, "Usage: spawn <car|truck> <x> <z> [heading]")
		return
	}

	kind := parking.Kind(parts[1])
	if !kind.Valid() {
		fmt.Fprintf(s.out, "Invalid vehicle kind: %s\n", parts[1])
		return
	}

	coords := make([]float64, 0, 3)
	for _, p := range parts[2:] {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil || !geo.Finite(f) {
			fmt.Fprintf(s.out, "Invalid number: %s\n", p)
			return
		}
		coords = append(coords, f)
	}

	req := sim.SpawnRequest{Kind: kind, X: coords[0], Z: coords[1]}
	if len(coords) == 3 {
		req.Heading = coords[2]
	}

	id, err := s.runner.Spawn(ctx, req)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %s\n", err)
		return
	}
	fmt.Fprintf(s.out, "Spawned vehicle %d\n", id)
}

func (s *Shell) handleDepart(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		fmt.Fprintln(s.out, "Usage: depart <vehicle-id>")
		return
	}

	id, err := strconv.Atoi(parts[1])
	if err != nil {
		fmt.Fprintln(s.out, "Invalid vehicle id")
		return
	}

	if err := s.runner.Depart(ctx, id); err != nil {
		fmt.Fprintf(s.out, "Error: %s\n", err)
		return
	}
	fmt.Fprintf(s.out, "Vehicle %d departing\n", id)
}

func (s *Shell) handleHelp() {
	fmt.Fprintln(s.out, `Commands:
  scenarios                           list scenarios
  scenario <id>                       load a scenario
  play | pause | toggle               control the clock
  tick [count] [dt]                   advance manually
  status                              show statistics
  spaces                              list spaces
  vehicles                            list vehicles
  spawn <car|truck> <x> <z> [heading] add a vehicle
  depart <vehicle-id>                 send a parked vehicle away
  quit                                leave the shell`)
}

func (s *Shell) printPlaying(stats sim.Stats) {
	if stats.Playing {
		fmt.Fprintln(s.out, "Simulation playing")
		return
	}
	fmt.Fprintln(s.out, "Simulation paused")
}

func (s *Shell) printStats(stats sim.Stats) {
	fmt.Fprintf(s.out, "Scenario: %s (%s)\n", stats.Scenario, playingLabel(stats.Playing))
	fmt.Fprintf(s.out, "Tick %d, %.1fs elapsed\n", stats.Tick, stats.Elapsed)
	fmt.Fprintf(s.out, "Occupancy: %d/%d (%.1f%%)\n", stats.OccupiedSpaces, stats.TotalSpaces, stats.OccupancyRate)
	fmt.Fprintf(s.out, "Vehicles: %d parked, %d moving, %d waiting\n", stats.Parked, stats.Moving, stats.Waiting)
	fmt.Fprintf(s.out, "Average wait: %.1fs\n", stats.AverageWaitTime)
}

func playingLabel(playing bool) string {
	if playing {
		return "playing"
	}
	return "paused"
}

package shell

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"parking-sim/internal/logging"
	"parking-sim/internal/sim"
)

// InstrumentedShell is a Shell that traces every command it runs.
type InstrumentedShell struct {
	*Shell
	tracer trace.Tracer
}

func NewInstrumentedShell(runner *sim.Runner, in io.Reader, out io.Writer, tracer trace.Tracer) *InstrumentedShell {
	return &InstrumentedShell{
		Shell:  NewShell(runner, in, out),
		tracer: tracer,
	}
}

func (s *InstrumentedShell) Run(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "shell.run")
	defer span.End()

	span.AddEvent("shell_started")
	logging.Info(ctx, "shell started")

	commands := 0
	for ctx.Err() == nil {
		if !s.scanner.Scan() {
			break
		}

		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}

		commands++
		if err := s.Execute(ctx, input); errors.Is(err, ErrQuit) {
			break
		}
	}

	span.SetAttributes(attribute.Int("shell.commands", commands))
	span.AddEvent("shell_ended")
	if err := s.scanner.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Execute runs input inside a span named after the command.
func (s *InstrumentedShell) Execute(ctx context.Context, input string) error {
	name := "empty"
	if parts := strings.Fields(input); len(parts) > 0 {
		name = parts[0]
	}

	ctx, span := s.tracer.Start(ctx, "shell."+name,
		trace.WithAttributes(
			attribute.String("command.name", name),
			attribute.String("command.input", input),
		))
	defer span.End()

	err := s.Shell.Execute(ctx, input)
	if errors.Is(err, ErrQuit) {
		span.AddEvent("quit")
	}

	stats := s.runner.Stats()
	span.SetAttributes(
		attribute.String("scenario.id", stats.Scenario),
		attribute.Int64("simulation.tick", int64(stats.Tick)),
		attribute.Int("simulation.vehicles", stats.Vehicles),
	)
	logging.Debug(ctx, "shell command", "command", name)
	return err
}

// Package library sequences the head and the picker into tape moves.
package library

import (
	"context"
	"fmt"

	"scarif/internal/logging"
	"scarif/pkg/types"
)

// HomePosition is the named position the head returns to between swaps.
const HomePosition = "home"

// Head is the head behaviour the sequences use.
type Head interface {
	Configure(ctx context.Context) error
	GoToPosition(ctx context.Context, name string) (types.StatusSnapshot, error)
}

// Picker is the picker behaviour the sequences use.
type Picker interface {
	Configure(ctx context.Context) error
	Insert(ctx context.Context) ([]string, error)
	Retrieve(ctx context.Context) ([]string, error)
}

// Library 磁带库
type Library struct {
	head   Head
	picker Picker
	logger *logging.Logger
}

// New 创建磁带库
func New(head Head, picker Picker, logger *logging.Logger) *Library {
	return &Library{head: head, picker: picker, logger: logger}
}

// Configure prepares both devices.
func (l *Library) Configure(ctx context.Context) error {
	if err := l.head.Configure(ctx); err != nil {
		return fmt.Errorf("configure head: %w", err)
	}
	if err := l.picker.Configure(ctx); err != nil {
		return fmt.Errorf("configure picker: %w", err)
	}
	return nil
}

// Swap takes the tape at from to to, then brings it back.
func (l *Library) Swap(ctx context.Context, from, to string) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"goto " + from, l.goTo(ctx, from)},
		{"retrieve", l.retrieve(ctx)},
		{"goto " + to, l.goTo(ctx, to)},
		{"insert", l.insert(ctx)},
		{"retrieve", l.retrieve(ctx)},
		{"goto " + from, l.goTo(ctx, from)},
		{"insert", l.insert(ctx)},
	}

	for i, step := range steps {
		l.logger.Info("Swap step", "step", i+1, "of", len(steps), "action", step.name)
		if err := step.run(); err != nil {
			return fmt.Errorf("swap %s<->%s, step %d (%s): %w", from, to, i+1, step.name, err)
		}
	}
	return nil
}

// RunCycle homes the head, swaps each slot with the home position and homes again.
func (l *Library) RunCycle(ctx context.Context, slots []string) error {
	if err := l.goTo(ctx, HomePosition)(); err != nil {
		return err
	}
	for _, slot := range slots {
		if err := l.Swap(ctx, slot, HomePosition); err != nil {
			return err
		}
	}
	return l.goTo(ctx, HomePosition)()
}

func (l *Library) goTo(ctx context.Context, name string) func() error {
	return func() error {
		_, err := l.head.GoToPosition(ctx, name)
		return err
	}
}

func (l *Library) insert(ctx context.Context) func() error {
	return func() error {
		_, err := l.picker.Insert(ctx)
		return err
	}
}

func (l *Library) retrieve(ctx context.Context) func() error {
	return func() error {
		_, err := l.picker.Retrieve(ctx)
		return err
	}
}

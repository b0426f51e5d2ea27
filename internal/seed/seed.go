// Package seed loads starter goals and presets from a YAML file.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"allowance/internal/core"
	"allowance/internal/sheets"
)

// File is the YAML document:
//
//	goals:
//	  - goal: Switch
//	    amount: 25000
//	presets:
//	  - label: chores
//	    amount: 100
type File struct {
	Goals   []core.Goal   `yaml:"goals"`
	Presets []core.Preset `yaml:"presets"`
}

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	for i, g := range f.Goals {
		if _, err := core.ValidateLabel("goal", g.Goal); err != nil {
			return nil, fmt.Errorf("seed goal %d: %w", i, err)
		}
	}
	for i, p := range f.Presets {
		if _, err := core.ValidateLabel("label", p.Label); err != nil {
			return nil, fmt.Errorf("seed preset %d: %w", i, err)
		}
	}
	return &f, nil
}

// Apply writes the seed rows into the tables listed in created, so an
// existing table is never touched.
func Apply(ctx context.Context, f *File, created []core.Table, goals sheets.GoalStore, presets sheets.PresetStore, logger *slog.Logger) error {
	if f == nil {
		return nil
	}
	if slices.Contains(created, core.TableGoals) {
		for _, g := range f.Goals {
			if err := goals.AddGoal(ctx, g); err != nil {
				return fmt.Errorf("seed goal %q: %w", g.Goal, err)
			}
		}
		logger.Info("Seeded goals", "count", len(f.Goals))
	}
	if slices.Contains(created, core.TablePresets) {
		for _, p := range f.Presets {
			if err := presets.AddPreset(ctx, p); err != nil {
				return fmt.Errorf("seed preset %q: %w", p.Label, err)
			}
		}
		logger.Info("Seeded presets", "count", len(f.Presets))
	}
	return nil
}

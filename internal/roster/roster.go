// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

// Package roster provides the read-only employee directory supplied by the
// external org-chart collaborator. The tracking core never mutates it.
package roster

import (
	"errors"
	"fmt"
	"sort"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/blackholeinfiverse51/workflow-blackhole/internal/models"
)

// ErrUnknownEmployee indicates an employee ID that does not resolve to a
// roster entry.
var ErrUnknownEmployee = errors.New("unknown employee")

// Directory is an immutable employee lookup built at startup.
type Directory struct {
	byID  map[string]models.Employee
	order []string
}

// Load reads the roster YAML file:
//
//	employees:
//	  - id: emp-001
//	    name: Jane Doe
//	    email: jane@example.com
//	    department: Field Ops
//	    active: true
func Load(path string) (*Directory, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load roster file %s: %w", path, err)
	}

	var employees []models.Employee
	if err := k.Unmarshal("employees", &employees); err != nil {
		return nil, fmt.Errorf("unmarshal roster: %w", err)
	}

	return New(employees)
}

// New builds a Directory from roster entries. Entries must have unique,
// non-empty IDs.
func New(employees []models.Employee) (*Directory, error) {
	d := &Directory{byID: make(map[string]models.Employee, len(employees))}
	for _, emp := range employees {
		if emp.ID == "" {
			return nil, fmt.Errorf("roster entry %q has no id", emp.Name)
		}
		if _, dup := d.byID[emp.ID]; dup {
			return nil, fmt.Errorf("duplicate roster id %q", emp.ID)
		}
		d.byID[emp.ID] = emp
		d.order = append(d.order, emp.ID)
	}
	sort.Strings(d.order)
	return d, nil
}

// Get resolves an employee by ID.
func (d *Directory) Get(id string) (models.Employee, bool) {
	emp, ok := d.byID[id]
	return emp, ok
}

// Resolve is Get restricted to active employees, with the sentinel error
// attached for command rejection. Inactive entries stay listable but
// cannot be the target of commands or samples, so they never enter the
// day's sessions or the statistics numerators.
func (d *Directory) Resolve(id string) (models.Employee, error) {
	emp, ok := d.byID[id]
	if !ok || !emp.Active {
		return models.Employee{}, fmt.Errorf("%w: %s", ErrUnknownEmployee, id)
	}
	return emp, nil
}

// List returns all employees in stable ID order.
func (d *Directory) List() []models.Employee {
	out := make([]models.Employee, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out
}

// ActiveCount returns the number of active employees. This is the roster
// size fed into the live statistics denominator.
func (d *Directory) ActiveCount() int {
	n := 0
	for _, emp := range d.byID {
		if emp.Active {
			n++
		}
	}
	return n
}

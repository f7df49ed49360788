/*
 * Cherry - An OpenFlow Controller
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

// Package policy decides whether traffic between two endpoints is admitted.
package policy

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/yyang13/pathctl/graph"
)

type Decision int

const (
	Admit Decision = iota
	Block
)

func (r Decision) String() string {
	if r == Block {
		return "block"
	}

	return "admit"
}

// Evaluator must be synchronous and free of side effects: the controller
// calls it on every first packet of a flow.
type Evaluator interface {
	Evaluate(src, dst graph.MAC) Decision
}

// EvaluatorFunc adapts a plain function to an Evaluator.
type EvaluatorFunc func(src, dst graph.MAC) Decision

func (r EvaluatorFunc) Evaluate(src, dst graph.MAC) Decision {
	return r(src, dst)
}

// Parity blocks endpoints whose address suffixes are both odd or both even,
// and admits mixed pairs.
type Parity struct{}

func (Parity) Evaluate(src, dst graph.MAC) Decision {
	if src.Suffix()&1 == dst.Suffix()&1 {
		return Block
	}

	return Admit
}

type AllowAll struct{}

func (AllowAll) Evaluate(src, dst graph.MAC) Decision {
	return Admit
}

// New returns the evaluator registered under name.
func New(name string) (Evaluator, error) {
	switch strings.ToLower(name) {
	case "parity", "":
		return Parity{}, nil
	case "allow-all":
		return AllowAll{}, nil
	default:
		return nil, errors.Errorf("unknown policy: %v", name)
	}
}

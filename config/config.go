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

// Package config reads the controller configuration file.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/superkkt/go-logging"
	"gopkg.in/yaml.v3"

	"github.com/yyang13/pathctl/pipeline"
	"github.com/yyang13/pathctl/policy"
	"github.com/yyang13/pathctl/stats"
)

type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	// Policy names the admission policy: parity or allow-all.
	Policy string      `yaml:"policy"`
	Stats  StatsConfig `yaml:"stats"`
	Log    LogConfig   `yaml:"log"`
}

type PipelineConfig struct {
	// Shape is single-table or two-table.
	Shape       string `yaml:"shape"`
	MatchSource bool   `yaml:"match_source"`
	// MirrorPort gets a copy of boundary traffic in the single-table shape.
	// Zero disables it.
	MirrorPort   uint32 `yaml:"mirror_port"`
	FastFailover bool   `yaml:"fast_failover"`
}

type StatsConfig struct {
	Interval time.Duration `yaml:"interval"`
	// Kind is port or flow.
	Kind string `yaml:"kind"`
	// Target is the only switch polled. Zero means every switch.
	Target uint64 `yaml:"target"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Shape:      pipeline.TwoTable.String(),
			MirrorPort: 1,
		},
		Policy: "parity",
		Stats: StatsConfig{
			Interval: stats.DefaultInterval,
			Kind:     stats.KindPort.String(),
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

// Load reads a YAML file on top of the default configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML configuration")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (r *Config) Validate() error {
	if _, err := pipeline.ParseShape(r.Pipeline.Shape); err != nil {
		return errors.Wrap(err, "invalid pipeline/shape")
	}
	if _, err := policy.New(r.Policy); err != nil {
		return errors.Wrap(err, "invalid policy")
	}
	if _, err := stats.ParseKind(r.Stats.Kind); err != nil {
		return errors.Wrap(err, "invalid stats/kind")
	}
	if r.Stats.Interval <= 0 {
		return errors.Errorf("invalid stats/interval: %v", r.Stats.Interval)
	}
	if r.Pipeline.MirrorPort > pipeline.PortMax && r.Pipeline.MirrorPort != pipeline.PortController {
		return errors.Errorf("invalid pipeline/mirror_port: %v", r.Pipeline.MirrorPort)
	}
	if _, err := logging.LogLevel(r.Log.Level); err != nil {
		return errors.Wrap(err, "invalid log/level")
	}

	return nil
}

// CompilerOptions assumes a validated configuration.
func (r *Config) CompilerOptions() pipeline.Options {
	shape, _ := pipeline.ParseShape(r.Pipeline.Shape)

	return pipeline.Options{
		Shape:       shape,
		MatchSource: r.Pipeline.MatchSource,
		MirrorPort:  r.Pipeline.MirrorPort,
	}
}

func (r *Config) Evaluator() policy.Evaluator {
	e, err := policy.New(r.Policy)
	if err != nil {
		panic(err)
	}

	return e
}

func (r *Config) PollerConfig() stats.Config {
	kind, _ := stats.ParseKind(r.Stats.Kind)

	return stats.Config{
		Interval: r.Stats.Interval,
		Kind:     kind,
		Target:   r.Stats.Target,
	}
}

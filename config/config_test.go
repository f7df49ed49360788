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

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superkkt/go-logging"

	"github.com/yyang13/pathctl/pipeline"
	"github.com/yyang13/pathctl/policy"
	"github.com/yyang13/pathctl/stats"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, pipeline.Options{Shape: pipeline.TwoTable, MirrorPort: 1}, c.CompilerOptions())
	assert.Equal(t, stats.Config{Interval: 5 * time.Second, Kind: stats.KindPort}, c.PollerConfig())
	assert.IsType(t, policy.Parity{}, c.Evaluator())
}

func TestLoad(t *testing.T) {
	data := `
pipeline:
  shape: single-table
  match_source: true
  mirror_port: 4294967293
  fast_failover: true
policy: allow-all
stats:
  interval: 10s
  kind: flow
  target: 5
log:
  level: DEBUG
`
	path := filepath.Join(t.TempDir(), "pathctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, pipeline.Options{
		Shape:       pipeline.SingleTable,
		MatchSource: true,
		MirrorPort:  pipeline.PortController,
	}, c.CompilerOptions())
	assert.True(t, c.Pipeline.FastFailover)
	assert.Equal(t, stats.Config{Interval: 10 * time.Second, Kind: stats.KindFlow, Target: 5}, c.PollerConfig())
	assert.IsType(t, policy.AllowAll{}, c.Evaluator())
	assert.Equal(t, "DEBUG", c.Log.Level)
}

func TestParsePartialKeepsDefaults(t *testing.T) {
	c, err := Parse([]byte("stats:\n  kind: flow\n"))
	require.NoError(t, err)
	assert.Equal(t, "two-table", c.Pipeline.Shape)
	assert.Equal(t, 5*time.Second, c.Stats.Interval)
	assert.Equal(t, "flow", c.Stats.Kind)
}

func TestParseInvalid(t *testing.T) {
	tests := []string{
		"pipeline:\n  shape: three-table\n",
		"policy: acl\n",
		"stats:\n  kind: queue\n",
		"stats:\n  interval: -1s\n",
		"pipeline:\n  mirror_port: 4294967295\n",
		"log:\n  level: LOUD\n",
		"pipeline: [",
	}
	for _, test := range tests {
		_, err := Parse([]byte(test))
		assert.Error(t, err, test)
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestInitLog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, initLog(&buf, "WARNING"))
	defer initLog(os.Stderr, "INFO")

	l := logging.MustGetLogger("config_test")
	l.Info("hidden")
	l.Warning("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	assert.Error(t, initLog(&buf, "LOUD"))
}

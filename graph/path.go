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

package graph

import (
	"github.com/pkg/errors"
)

// ErrNotFound means there is no path yet. Callers treat it as a normal outcome.
var ErrNotFound = errors.New("path not found")

// ShortestPath returns a minimum hop-count path from src to dst, both
// included. Among several shortest paths the first one discovered by BFS wins,
// which follows edge insertion order.
func (r *Graph) ShortestPath(src, dst NodeID) ([]NodeID, error) {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.bfs(src, dst, nil)
}

// PathAvoiding is ShortestPath on the graph without the nodes in avoid.
func (r *Graph) PathAvoiding(src, dst NodeID, avoid ...NodeID) ([]NodeID, error) {
	skip := make(map[NodeID]bool, len(avoid))
	for _, v := range avoid {
		if v == src || v == dst {
			return nil, errors.Wrapf(ErrNotFound, "%v is avoided", v)
		}
		skip[v] = true
	}

	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.bfs(src, dst, skip)
}

func (r *Graph) HasPath(src, dst NodeID) bool {
	_, err := r.ShortestPath(src, dst)
	return err == nil
}

func (r *Graph) bfs(src, dst NodeID, skip map[NodeID]bool) ([]NodeID, error) {
	if _, ok := r.nodes[src]; !ok {
		return nil, errors.Wrapf(ErrNotFound, "unknown source %v", src)
	}
	if _, ok := r.nodes[dst]; !ok {
		return nil, errors.Wrapf(ErrNotFound, "unknown destination %v", dst)
	}
	if src == dst {
		return []NodeID{src}, nil
	}

	parent := map[NodeID]NodeID{src: src}
	queue := []NodeID{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, n := range r.nodes[cur].adj {
			if _, seen := parent[n.Node]; seen {
				continue
			}
			if skip[n.Node] {
				continue
			}
			// Endpoints do not forward traffic.
			if n.Node.IsEndpoint() && n.Node != dst {
				continue
			}
			parent[n.Node] = cur
			if n.Node == dst {
				return walkBack(parent, src, dst), nil
			}
			queue = append(queue, n.Node)
		}
	}

	return nil, errors.Wrapf(ErrNotFound, "%v -> %v", src, dst)
}

func walkBack(parent map[NodeID]NodeID, src, dst NodeID) []NodeID {
	path := []NodeID{dst}
	for cur := dst; cur != src; {
		cur = parent[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path
}

// Interior strips both ends of a full path, leaving the switches that need
// rules. It returns nil for paths shorter than three nodes.
func Interior(path []NodeID) []NodeID {
	if len(path) < 3 {
		return nil
	}
	result := make([]NodeID, len(path)-2)
	copy(result, path[1:len(path)-1])

	return result
}

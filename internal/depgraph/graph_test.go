// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

package depgraph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmdwarf/wasmdwarf/internal/depgraph"
)

func TestGetReachableFromSingleRoot(t *testing.T) {
	g := depgraph.New()
	g.AddEdge(2, 1)
	g.AddEdge(3, 2)
	g.AddRoot(3)

	reachable := g.GetReachable()
	require.Contains(t, reachable, depgraph.Offset(1))
	require.Contains(t, reachable, depgraph.Offset(2))
	require.Contains(t, reachable, depgraph.Offset(3))
}

func TestGetReachableExcludesUnreferencedNodes(t *testing.T) {
	g := depgraph.New()
	g.AddEdge(2, 1)
	g.AddRoot(1)
	// offset 99 has no edge into the reachable set and isn't a root
	reachable := g.GetReachable()
	require.NotContains(t, reachable, depgraph.Offset(99))
}

func TestGetReachableHandlesCycles(t *testing.T) {
	g := depgraph.New()
	g.AddEdge(1, 2)
	g.AddEdge(2, 1)
	g.AddRoot(1)

	reachable := g.GetReachable()
	require.Contains(t, reachable, depgraph.Offset(1))
	require.Contains(t, reachable, depgraph.Offset(2))
}

func TestGetReachableEmptyGraph(t *testing.T) {
	g := depgraph.New()
	require.Empty(t, g.GetReachable())
}

func TestIsRoot(t *testing.T) {
	g := depgraph.New()
	g.AddRoot(7)
	require.True(t, g.IsRoot(7))
	require.False(t, g.IsRoot(8))
}

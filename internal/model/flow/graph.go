package flow

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Collection mirrors one flow JSON file: a bag of nodes keyed by id.
type Collection struct {
	Nodes map[string]Node `json:"nodes"`
}

// Graph is the merged, read-only dialogue graph. It performs no referential
// validation; dangling transitions surface during traversal and are handled
// by the engine.
type Graph struct {
	nodes map[string]Node
}

// Merge combines collections into a single graph. Later collections win on
// duplicate node ids; collisions are logged but the override is kept.
func Merge(collections ...Collection) *Graph {
	nodes := make(map[string]Node)
	for _, c := range collections {
		for id, node := range c.Nodes {
			if _, exists := nodes[id]; exists {
				log.Printf("[flow] node %q overridden by a later flow source", id)
			}
			nodes[id] = node
		}
	}
	return &Graph{nodes: nodes}
}

// Get looks up a node by id.
func (g *Graph) Get(id string) (Node, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// IDs returns all node ids in sorted order, for startup logging.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadDir reads every *.json file in dir (in name order) and merges them into
// one graph, later files overriding earlier ones.
func LoadDir(dir string) (*Graph, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read flows dir %s: %w", dir, err)
	}

	var collections []Collection
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read flow file %s: %w", path, err)
		}
		var c Collection
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse flow file %s: %w", path, err)
		}
		collections = append(collections, c)
	}

	if len(collections) == 0 {
		return nil, fmt.Errorf("no flow files found in %s", dir)
	}

	return Merge(collections...), nil
}

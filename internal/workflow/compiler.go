// internal/workflow/compiler.go
package workflow

import (
	"fmt"
	"strings"

	"github.com/awalterschulze/gographviz"
)

// Compiler turns Graphviz DOT source into a GraphDef. Each node declares its
// tool with a tool="name" attribute; edges are plain (one successor per
// node); graph-level attributes configure the start node and the stop
// condition:
//
//	digraph Pipeline {
//	    graph [start="profile", stop_metric="anomalies.count", stop_op="==", stop_value="0"]
//	    profile   [tool="profile"]
//	    detect    [tool="detect_anomalies"]
//	    profile -> detect
//	}
type Compiler struct{}

func NewCompiler() *Compiler { return &Compiler{} }

var validOps = map[string]bool{"<=": true, "<": true, ">=": true, ">": true, "==": true, "!=": true}

func (c *Compiler) Compile(dot string) (*GraphDef, error) {
	ast, err := gographviz.ParseString(dot)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DOT: %w", err)
	}

	g := gographviz.NewGraph()
	if err := gographviz.Analyse(ast, g); err != nil {
		return nil, fmt.Errorf("failed to analyze DOT: %w", err)
	}

	def := &GraphDef{
		Nodes: map[string]string{},
		Edges: map[string]string{},
	}

	for _, n := range g.Nodes.Nodes {
		tool := getAttr(n.Attrs, "tool")
		if tool == "" {
			return nil, fmt.Errorf("node %q is missing the tool attribute", n.Name)
		}
		def.Nodes[n.Name] = tool
	}
	if len(def.Nodes) == 0 {
		return nil, fmt.Errorf("graph has no nodes")
	}

	// gographviz normalizes edge order; the submitted text order is what
	// authors reason about, so extract it ourselves
	orderedEdges, err := extractEdgesInTextOrder(dot)
	if err != nil {
		return nil, fmt.Errorf("failed to extract edge order from DOT: %w", err)
	}

	for _, e := range orderedEdges {
		if _, ok := def.Nodes[e.From]; !ok {
			return nil, fmt.Errorf("edge references unknown source node %q", e.From)
		}
		if _, ok := def.Nodes[e.To]; !ok {
			return nil, fmt.Errorf("edge references unknown destination node %q", e.To)
		}
		if prev, ok := def.Edges[e.From]; ok {
			return nil, fmt.Errorf("node %q has more than one successor (%q and %q); branching is not supported", e.From, prev, e.To)
		}
		def.Edges[e.From] = e.To
	}

	start := graphAttr(g, "start")
	if start == "" && len(orderedEdges) > 0 {
		start = orderedEdges[0].From
	}
	if start == "" {
		// single-node graphs without edges: first declared node
		start = g.Nodes.Nodes[0].Name
	}
	if _, ok := def.Nodes[start]; !ok {
		return nil, fmt.Errorf("start node %q is not declared", start)
	}
	def.StartNode = start

	cond, err := compileCondition(g)
	if err != nil {
		return nil, err
	}
	def.LoopCondition = cond

	return def, nil
}

func compileCondition(g *gographviz.Graph) (*LoopCondition, error) {
	metric := graphAttr(g, "stop_metric")
	expr := graphAttr(g, "stop_expr")
	if metric == "" && expr == "" {
		return nil, nil
	}

	if metric != "" {
		op := graphAttr(g, "stop_op")
		if !validOps[op] {
			return nil, fmt.Errorf("unsupported stop_op %q", op)
		}
		raw := parseLiteral(graphAttr(g, "stop_value"))
		value, ok := asFloat(raw)
		if !ok {
			return nil, fmt.Errorf("stop_value %q is not numeric", graphAttr(g, "stop_value"))
		}
		return &LoopCondition{Metric: metric, Op: op, Value: value}, nil
	}

	return &LoopCondition{Expr: expr}, nil
}

func graphAttr(g *gographviz.Graph, key string) string {
	val, ok := g.Attrs[gographviz.Attr(key)]
	if !ok {
		return ""
	}
	return trimQuotes(strings.TrimSpace(val))
}

// getAttr lê atributo do Graphviz (normalmente vem com aspas).
func getAttr(attrs gographviz.Attrs, key string) string {
	val, ok := attrs[gographviz.Attr(key)]
	if !ok {
		return ""
	}
	return trimQuotes(strings.TrimSpace(val))
}

func trimQuotes(val string) string {
	if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
		val = val[1 : len(val)-1]
	}
	return val
}

package kgml

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nesthivep/kgml/api/schemas"
)

// Serialize renders a graph as KGML text: one KG block holding a KGNODE
// line per node and a KGLINK line per edge, in the graph's own order.
// Meta properties are stringified and emitted in sorted key order so the
// output is stable; the type field always comes first.
func Serialize(data schemas.GraphData) string {
	var sb strings.Builder
	sb.WriteString(KwKG)
	sb.WriteByte('\n')
	for _, node := range data.Nodes {
		sb.WriteString(KwKGNode)
		sb.WriteByte(' ')
		sb.WriteString(node.UID)
		sb.WriteString(" : ")
		writeFields(&sb, node.Type, node.MetaProps)
		sb.WriteByte('\n')
	}
	for _, edge := range data.Edges {
		sb.WriteString(KwKGLink)
		sb.WriteByte(' ')
		sb.WriteString(edge.SourceUID)
		sb.WriteString(" -> ")
		sb.WriteString(edge.TargetUID)
		sb.WriteString(" : ")
		writeFields(&sb, edge.Type, edge.MetaProps)
		sb.WriteByte('\n')
	}
	sb.WriteString(CloseMarker)
	sb.WriteByte('\n')
	return sb.String()
}

func writeFields(sb *strings.Builder, typ string, props map[string]any) {
	sb.WriteString("type=")
	sb.WriteString(strconv.Quote(typ))

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(", ")
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(strconv.Quote(stringifyValue(props[k])))
	}
}

func stringifyValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// DecodeGraph parses KGML graph text produced by Serialize (or written by
// hand) back into graph data. The source must consist solely of KG blocks;
// command statements are rejected.
func DecodeGraph(src string) (schemas.GraphData, error) {
	program, err := Parse(src)
	if err != nil {
		return schemas.GraphData{}, err
	}
	var data schemas.GraphData
	for _, stmt := range program.Statements {
		block, ok := stmt.(*KGBlock)
		if !ok {
			return schemas.GraphData{}, fmt.Errorf("graph text may contain only KG blocks, found %T", stmt)
		}
		for _, decl := range block.Declarations {
			switch d := decl.(type) {
			case *NodeDecl:
				node := schemas.Node{UID: d.UID, MetaProps: map[string]any{}}
				for _, f := range d.Fields {
					if f.Key == "type" {
						node.Type = f.Value
						continue
					}
					node.MetaProps[f.Key] = f.Value
				}
				data.Nodes = append(data.Nodes, node)
			case *EdgeDecl:
				edge := schemas.Edge{SourceUID: d.SourceUID, TargetUID: d.TargetUID, MetaProps: map[string]any{}}
				for _, f := range d.Fields {
					if f.Key == "type" {
						edge.Type = f.Value
						continue
					}
					edge.MetaProps[f.Key] = f.Value
				}
				data.Edges = append(data.Edges, edge)
			}
		}
	}
	return data, nil
}

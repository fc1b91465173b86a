package routing

import (
	"strings"

	"pbx-control/internal/fsxml"
	"pbx-control/internal/pbx"
)

// runFlow walks a call flow from its entry node along Next links, one action
// (or dispatched destination) per node. A node is never visited twice, so
// cyclic graphs terminate.
func (k *compilation) runFlow(flow *pbx.CallFlow, depth int) []fsxml.Condition {
	if len(flow.Nodes) == 0 {
		return nil
	}

	index := make(map[string]int, len(flow.Nodes))
	for i, n := range flow.Nodes {
		if _, dup := index[n.ID]; !dup {
			index[n.ID] = i
		}
	}

	cur := 0
	if i, ok := index[pbx.EntryNodeID]; ok {
		cur = i
	}

	visited := make(map[int]bool, len(flow.Nodes))
	var out []fsxml.Condition
	for {
		if visited[cur] {
			k.log.Warn("call flow cycle short-circuited", "call_flow_id", flow.ID, "node_id", flow.Nodes[cur].ID)
			break
		}
		visited[cur] = true

		n := flow.Nodes[cur]
		out = append(out, k.node(n, depth)...)

		if n.Next == "" {
			break
		}
		next, ok := index[n.Next]
		if !ok {
			k.log.Warn("call flow references missing node", "call_flow_id", flow.ID, "node_id", n.ID, "next", n.Next)
			break
		}
		cur = next
	}
	return out
}

func (k *compilation) node(n pbx.Node, depth int) []fsxml.Condition {
	data := func(key string) string { return strings.TrimSpace(n.Data[key]) }

	switch n.Type {
	case pbx.NodePlayPrompt:
		if f := data("file"); f != "" {
			return flat(fsxml.Playback(f))
		}
	case pbx.NodeBridge:
		return k.dispatch(pbx.Destination{
			Kind:     pbx.DestinationKind(data("destination_type")),
			TargetID: data("destination_id"),
		}, depth+1)
	case pbx.NodeRecord:
		if p := data("path"); p != "" {
			return flat(fsxml.RecordSession(p))
		}
	case pbx.NodeWebhook:
		if u := data("url"); u != "" {
			return flat(fsxml.HTTPNotify(u))
		}
	default:
		k.log.Debug("skipping unknown call flow node", "node_id", n.ID, "type", string(n.Type))
	}
	return nil
}

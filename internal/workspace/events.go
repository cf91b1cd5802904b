package workspace

import "encoding/json"

// Outbound workspace event payloads. Every event carries a `type`
// discriminator so clients can switch on it; each payload is built once and
// delivered byte-identical to every recipient.

func BootstrapEvent(nodes []*Node) []byte {
	payload, _ := json.Marshal(map[string]any{
		"type":  "workspace_bootstrap",
		"nodes": nodeList(nodes),
	})
	return payload
}

// TreeRefreshEvent carries the full current listing plus the node the client
// should focus, nil when the mutation left nothing to focus (deletes).
func TreeRefreshEvent(nodes []*Node, activeNodeID *int) []byte {
	payload, _ := json.Marshal(map[string]any{
		"type":           "workspace_event",
		"event":          "tree_refresh",
		"nodes":          nodeList(nodes),
		"active_node_id": activeNodeID,
	})
	return payload
}

func RunResultEvent(nodeID int, nodeName, language, output string) []byte {
	payload, _ := json.Marshal(map[string]any{
		"type":     "workspace_event",
		"event":    "run_result",
		"node_id":  nodeID,
		"name":     nodeName,
		"language": language,
		"output":   output,
	})
	return payload
}

// FileUpdateEvent carries one incremental edit: either a delta or the full
// replacement content, plus the editor's identity and cursor so peers can
// render remote carets.
func FileUpdateEvent(nodeID int, delta *Delta, content *string, userID int, username string, cursor int) []byte {
	payload, _ := json.Marshal(map[string]any{
		"type":            "file_update",
		"node_id":         nodeID,
		"delta":           delta,
		"content":         content,
		"user_id":         userID,
		"username":        username,
		"cursor_position": cursor,
	})
	return payload
}

func CursorEvent(eventType string, userID int, username string, presence *Presence) []byte {
	payload, _ := json.Marshal(map[string]any{
		"type":            eventType, // cursor_update or file_focus
		"user_id":         userID,
		"username":        username,
		"node_id":         presence.ActiveNodeID,
		"cursor_position": presence.CursorPosition,
		"selection_start": presence.SelectionStart,
		"selection_end":   presence.SelectionEnd,
		"color":           presence.Color,
	})
	return payload
}

func MembershipEvent(eventType string, userID int, username, color string) []byte {
	payload, _ := json.Marshal(map[string]any{
		"type":     eventType, // user_joined or user_left
		"user_id":  userID,
		"username": username,
		"color":    color,
	})
	return payload
}

func nodeList(nodes []*Node) []*Node {
	if nodes == nil {
		return []*Node{}
	}
	return nodes
}

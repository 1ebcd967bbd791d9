package chatexport

import (
	"fmt"
	"time"
)

// StructuralError reports a malformed conversation tree: a missing or
// duplicated root, an edge to an unknown node, or a cycle.
type StructuralError struct {
	ConversationID string
	Reason         string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("malformed conversation tree %s: %s", e.ConversationID, e.Reason)
}

// MainPath resolves the single linear branch of the tree selected for
// rendering, root excluded.
//
// Whenever a user edits and resends a message the tree forks; the fork whose
// subtree holds the most recently touched message is what the user currently
// sees, so at every fork the child with the greatest subtree timestamp wins.
// Ties go to the first child in original order.
func MainPath(conv *Conversation) ([]NodeID, error) {
	rootID, err := conv.Root()
	if err != nil {
		return nil, err
	}
	if err := validateTree(conv, rootID); err != nil {
		return nil, err
	}

	path := []NodeID{}
	current := rootID
	for {
		node := conv.Nodes[current]
		if len(node.Children) == 0 {
			return path, nil
		}

		next := node.Children[0]
		if len(node.Children) > 1 {
			best := latestTimestamp(conv, next)
			for _, child := range node.Children[1:] {
				if ts := latestTimestamp(conv, child); ts.After(best) {
					best = ts
					next = child
				}
			}
		}

		path = append(path, next)
		current = next
	}
}

// latestTimestamp is the maximum message timestamp anywhere in the subtree
// rooted at id, falling back to the node's own timestamp, falling back to the
// zero time. Pure over the node collection; validateTree has already ruled
// out cycles and dangling edges below the root.
func latestTimestamp(conv *Conversation, id NodeID) time.Time {
	node := conv.Nodes[id]

	var latest time.Time
	if node.Message != nil {
		latest = node.Message.CreateTime
		if node.Message.UpdateTime.After(latest) {
			latest = node.Message.UpdateTime
		}
	}
	for _, child := range node.Children {
		if ts := latestTimestamp(conv, child); ts.After(latest) {
			latest = ts
		}
	}
	return latest
}

// validateTree walks the subtree reachable from the root, failing on child
// ids that resolve to no node and on revisited ids. The reference behavior
// on such trees was unbounded recursion, which we do not reproduce.
func validateTree(conv *Conversation, rootID NodeID) error {
	visited := map[NodeID]bool{}

	var walk func(id NodeID) error
	walk = func(id NodeID) error {
		if visited[id] {
			return &StructuralError{ConversationID: conv.ID, Reason: fmt.Sprintf("node %s revisited, tree contains a cycle", id)}
		}
		visited[id] = true

		node, ok := conv.Nodes[id]
		if !ok {
			return &StructuralError{ConversationID: conv.ID, Reason: fmt.Sprintf("edge to unknown node %s", id)}
		}
		for _, child := range node.Children {
			if _, ok := conv.Nodes[child]; !ok {
				return &StructuralError{ConversationID: conv.ID, Reason: fmt.Sprintf("edge to unknown node %s", child)}
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}

	return walk(rootID)
}

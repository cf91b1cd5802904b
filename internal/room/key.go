package room

import (
	"fmt"
	"strconv"
	"strings"
)

// Room keys name the broadcast group for one chat pair, one group, or the
// workspace attached to either. Both participants of a 1:1 chat must compute
// the same key, so the pair is canonicalized by sorting the numeric ids.

// ChatKey returns the canonical key for a 1:1 chat between two users.
func ChatKey(a, b int) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("chat_%d_%d", a, b)
}

// GroupKey returns the key for a group chat room.
func GroupKey(groupID int) string {
	return fmt.Sprintf("group_%d", groupID)
}

// ParsedKey is the decoded form of a chat or group room key. Workspace rooms
// reuse the parent key directly, so parsing one yields the membership rule of
// its parent chat or group.
type ParsedKey struct {
	Group   bool
	GroupID int
	UserA   int
	UserB   int
}

// ParseKey decodes a "chat_{a}_{b}" or "group_{id}" key.
func ParseKey(key string) (ParsedKey, error) {
	switch {
	case strings.HasPrefix(key, "chat_"):
		parts := strings.Split(strings.TrimPrefix(key, "chat_"), "_")
		if len(parts) != 2 {
			return ParsedKey{}, fmt.Errorf("malformed chat key %q", key)
		}
		a, errA := strconv.Atoi(parts[0])
		b, errB := strconv.Atoi(parts[1])
		if errA != nil || errB != nil {
			return ParsedKey{}, fmt.Errorf("malformed chat key %q", key)
		}
		return ParsedKey{UserA: a, UserB: b}, nil

	case strings.HasPrefix(key, "group_"):
		id, err := strconv.Atoi(strings.TrimPrefix(key, "group_"))
		if err != nil {
			return ParsedKey{}, fmt.Errorf("malformed group key %q", key)
		}
		return ParsedKey{Group: true, GroupID: id}, nil
	}
	return ParsedKey{}, fmt.Errorf("unknown room key %q", key)
}

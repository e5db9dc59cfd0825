package cache

import (
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/wxdash/internal/protocol"
)

// NameIndex maps station ids to display names. It only accumulates: ids seen
// in an earlier station list stay known when a later list omits them.
type NameIndex struct {
	mu    sync.RWMutex
	names map[int]string
}

func NewNameIndex() *NameIndex {
	return &NameIndex{
		names: make(map[int]string),
	}
}

// Merge records every station in list and returns how many ids were new.
// Blank names are skipped.
func (n *NameIndex) Merge(list []protocol.StationInfo) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	added := 0
	for _, st := range list {
		name := strings.TrimSpace(st.StationName)
		if name == "" {
			continue
		}
		if _, ok := n.names[st.StationID]; !ok {
			added++
		}
		n.names[st.StationID] = name
	}
	return added
}

func (n *NameIndex) Name(id int) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	name, ok := n.names[id]
	return name, ok
}

// All returns every known station ordered by id.
func (n *NameIndex) All() []protocol.StationInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]protocol.StationInfo, 0, len(n.names))
	for id, name := range n.names {
		out = append(out, protocol.StationInfo{StationID: id, StationName: name})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StationID < out[j].StationID
	})
	return out
}

func (n *NameIndex) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.names)
}

package util

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	mu   sync.Mutex
	node *snowflake.Node
)

// InitIDs pins the Snowflake node used for all entity IDs. Call it once at
// startup; NewID falls back to node 1 when it was never called.
func InitIDs(nodeID int64) error {
	mu.Lock()
	defer mu.Unlock()
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	node = n
	return nil
}

// NewID generates a globally unique, time-ordered int64 ID. Because IDs are
// time-ordered, identity order matches creation order.
func NewID() int64 {
	mu.Lock()
	if node == nil {
		node, _ = snowflake.NewNode(1)
	}
	n := node
	mu.Unlock()
	return n.Generate().Int64()
}

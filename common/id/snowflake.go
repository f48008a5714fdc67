package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID.
// Each process that mints run IDs needs its own node ID.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a new globally unique int64 ID using the Snowflake algorithm.
// IDs are time-ordered and unique across distributed instances.
func New() int64 {
	return node.Generate().Int64()
}

// NewRunID returns a run identifier. Two runs started in the same
// millisecond on the same node still get distinct IDs.
func NewRunID() string {
	return node.Generate().String()
}

// Time returns the creation time (Unix milliseconds) encoded in a run ID.
// The second return value is false when s is not a snowflake ID.
func Time(s string) (int64, bool) {
	parsed, err := snowflake.ParseString(s)
	if err != nil {
		return 0, false
	}
	return parsed.Time(), true
}

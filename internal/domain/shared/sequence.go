package shared

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	sequenceOnce sync.Once
	sequenceNode *snowflake.Node
	sequenceMu   sync.Mutex
)

// InitSequence sets the snowflake node used for ordered sequence numbers.
// Each running instance must use a distinct node id (0-1023). It is safe to
// call once at startup; later calls are ignored.
func InitSequence(nodeID int64) error {
	var initErr error
	sequenceOnce.Do(func() {
		node, err := snowflake.NewNode(nodeID)
		if err != nil {
			initErr = fmt.Errorf("failed to create snowflake node: %w", err)
			return
		}
		sequenceMu.Lock()
		sequenceNode = node
		sequenceMu.Unlock()
	})
	return initErr
}

// NextSequence returns a time ordered, process-unique sequence number.
// It falls back to node 0 when InitSequence was never called.
func NextSequence() snowflake.ID {
	sequenceMu.Lock()
	defer sequenceMu.Unlock()
	if sequenceNode == nil {
		node, err := snowflake.NewNode(0)
		if err != nil {
			panic(err)
		}
		sequenceNode = node
	}
	return sequenceNode.Generate()
}

package uid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Snowflake generates int64 IDs from a bwmarrin/snowflake node.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake returns a generator bound to nodeID. A negative nodeID picks a random node,
// which is fine for a single process but may collide across replicas.
func NewSnowflake(nodeID int64) (*Snowflake, error) {
	if nodeID < 0 {
		var b [2]byte
		if _, err := rand.Read(b[:]); err != nil {
			return nil, err
		}
		nodeID = int64(binary.BigEndian.Uint16(b[:]) % (1 << snowflake.NodeBits))
	}

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}

	return &Snowflake{node: node}, nil
}

// Generate returns the next ID.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}

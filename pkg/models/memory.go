package models

import "time"

// CompressionConfig controls §4.1.1 compaction behavior for a Memory.
type CompressionConfig struct {
	MaxTotalTokens          int  `json:"max_total_tokens"`
	PreserveRecentMessages   int  `json:"preserve_recent_messages"`
	PerMessageCharCap        int  `json:"per_message_char_cap"`
	AutoOptimize             bool `json:"auto_optimize"`
}

// DefaultCompressionConfig mirrors the teacher's compaction defaults, widened
// to the token budget this spec expects for a multi-step agent run.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MaxTotalTokens:         16000,
		PreserveRecentMessages: 10,
		PerMessageCharCap:      8000,
		AutoOptimize:           true,
	}
}

// Memory is an ordered message log for one agent role (planner or executor).
// Append/rollback/snapshot semantics are enforced by the memory package,
// not by this struct directly — this type is the value-based wire shape.
type Memory struct {
	Messages []Message         `json:"messages"`
	Config   CompressionConfig `json:"config"`
}

// Snapshot is a point-in-time, value-based copy of a Memory suitable for
// persistence (§3: "Persistence repositories... observe value copies").
type Snapshot struct {
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

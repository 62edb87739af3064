package agentmem

import (
	"fmt"
	"strings"

	"github.com/conductorhq/conductor/internal/observability"
	"github.com/conductorhq/conductor/pkg/models"
)

// EstimateTokens approximates a token count for a slice of messages.
// Characters in the CJK unified range cost ~1/1.5 tokens each; every other
// character costs ~1/4 tokens (spec §4.1.1). This deliberately replaces the
// teacher's uniform totalChars/4 estimator, which does not distinguish
// script.
func EstimateTokens(msgs []models.Message) int {
	total := 0.0
	for _, msg := range msgs {
		total += estimateTokensForString(msg.Content)
		for _, tc := range msg.ToolCalls {
			total += estimateTokensForString(string(tc.Input))
		}
	}
	return int(total)
}

func estimateTokensForString(s string) float64 {
	total := 0.0
	for _, r := range s {
		if isCJK(r) {
			total += 1.0 / 1.5
		} else {
			total += 1.0 / 4.0
		}
	}
	return total
}

func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
		return true
	case r >= 0x3400 && r <= 0x4DBF: // CJK Extension A
		return true
	case r >= 0x3040 && r <= 0x30FF: // Hiragana / Katakana
		return true
	case r >= 0xAC00 && r <= 0xD7A3: // Hangul syllables
		return true
	default:
		return false
	}
}

const truncatedMarker = "\n...[content truncated]"

// capToolResults replaces the tail of any individual message whose content
// exceeds the per-message character cap with an ellipsis marker (step 4 of
// §4.1.1), before compression proper runs.
func (m *Memory) capToolResults() {
	cap := m.config.PerMessageCharCap
	if cap <= 0 {
		return
	}
	for i := range m.messages {
		if len(m.messages[i].Content) > cap {
			keep := cap - len(truncatedMarker)
			if keep < 0 {
				keep = 0
			}
			m.messages[i].Content = m.messages[i].Content[:keep] + truncatedMarker
		}
	}
}

// compress implements the §4.1.1 procedure. It is idempotent: running it
// again on an already-compressed memory produces the same message sequence,
// because the real system prompt is tracked by LatestSystem skipping the
// synthetic summary (tagged IsHistoricalSummary) rather than by scanning for
// the last Role==RoleSystem message, and the summary itself is excluded
// from NonSystem so it is never re-folded into a later summary.
func (m *Memory) compress() {
	m.capToolResults()

	sysMsg, hasSys := m.LatestSystem()
	nonSystem := m.NonSystem()

	keepRecent := m.config.PreserveRecentMessages
	if keepRecent < 0 {
		keepRecent = 0
	}
	if keepRecent >= len(nonSystem) {
		// Nothing old enough to fold; compression would be a no-op.
		return
	}

	older := nonSystem[:len(nonSystem)-keepRecent]
	recent := nonSystem[len(nonSystem)-keepRecent:]

	if len(older) == 0 {
		return
	}

	// Detect a prior run's synthetic summary so re-compressing does not
	// nest "[historical summary: ...]" markers inside one another.
	foldCount := len(older)
	oldestOlder := older[0]
	if strings.HasPrefix(oldestOlder.Content, "[historical summary:") {
		older = older[1:]
	}

	approxTokens := int(estimateTokensForString(joinContents(older)))
	summary := models.Message{
		Role:                models.RoleSystem,
		Content:             fmt.Sprintf("[historical summary: %d messages, ~%d tokens]", foldCount, approxTokens),
		IsHistoricalSummary: true,
	}

	// The most recent of the folded messages survives, truncated to fit the
	// remaining budget, directly after the synthetic summary (§4.1.1 step 3).
	tail := older[len(older)-1]
	remaining := m.config.MaxTotalTokens - approxTokens
	tail.Content = truncateToTokenBudget(tail.Content, remaining)

	rebuilt := make([]models.Message, 0, len(m.messages))
	if hasSys {
		rebuilt = append(rebuilt, sysMsg)
	}
	rebuilt = append(rebuilt, summary, tail)
	rebuilt = append(rebuilt, recent...)
	m.messages = rebuilt

	observability.EmitCompressionFold(&observability.CompressionFoldEvent{
		AgentID:       m.agentID,
		FoldedCount:   foldCount,
		ApproxTokens:  approxTokens,
		RemainingMsgs: len(m.messages),
	})
	if m.metrics != nil {
		m.metrics.RecordCompressionFold(m.agentID, foldCount)
	}
}

func joinContents(msgs []models.Message) string {
	var sb strings.Builder
	for _, msg := range msgs {
		sb.WriteString(msg.Content)
	}
	return sb.String()
}

func truncateToTokenBudget(s string, budgetTokens int) string {
	if budgetTokens <= 0 {
		return ""
	}
	// Conservative: assume worst-case 1/4 tokens-per-char density to stay
	// inside the budget even for non-CJK text.
	maxChars := budgetTokens * 4
	if len(s) <= maxChars {
		return s
	}
	if maxChars < 0 {
		maxChars = 0
	}
	return s[:maxChars] + truncatedMarker
}

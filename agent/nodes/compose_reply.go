package nodes

import (
	"fmt"
	"strings"

	contractx "github.com/pawdesk/groomflow/agent/contract"
)

// ComposeReply finalizes the outbound descriptor for the turn. A stage
// that produced no reply text is a bug, not a silent turn.
func ComposeReply(t *Turn) (contractx.Outbound, error) {
	reply := strings.TrimSpace(t.Reply())
	if reply == "" {
		return contractx.Outbound{}, fmt.Errorf("%w: empty reply for conversation %s", contractx.ErrValidation, t.Conv.ID)
	}
	return contractx.Outbound{
		ConversationID: t.Conv.ID,
		Reply:          reply,
	}, nil
}

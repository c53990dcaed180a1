package nodes

import (
	"context"
	"fmt"
	"strings"

	recordx "github.com/pawdesk/groomflow/agent/record"
	routex "github.com/pawdesk/groomflow/agent/route"
)

// ProvideInfo answers business questions from the brands table. It is
// strictly read-only on conversation fields beyond the activity clock.
type ProvideInfo struct {
	deps Deps
}

func NewProvideInfo(deps Deps) *ProvideInfo {
	return &ProvideInfo{deps: deps}
}

func (n *ProvideInfo) Execute(ctx context.Context, t *Turn) (routex.Outcome, error) {
	brands, err := n.deps.Store.ListBrands(ctx, recordx.BrandFilter{ActiveOnly: true})
	if err != nil {
		return routex.Outcome{}, fmt.Errorf("provide info: %w", err)
	}

	if len(brands) == 0 {
		t.Say("We work with a rotating set of grooming product lines — ask me anything else, or we can get back to booking.")
		return routex.Outcome{Answered: true}, nil
	}

	var sb strings.Builder
	sb.WriteString("We groom exclusively with these product lines:")
	for _, b := range brands {
		sb.WriteString("\n- " + b.BrandName)
		if b.Description != "" {
			sb.WriteString(": " + b.Description)
		}
	}
	t.Say(sb.String())
	t.Say("Anything else, or shall we get back to booking?")
	return routex.Outcome{Answered: true}, nil
}

package engine

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/pawdesk/groomflow/agent/contract"
	"github.com/pawdesk/groomflow/agent/nodes"
	routex "github.com/pawdesk/groomflow/agent/route"
	statex "github.com/pawdesk/groomflow/agent/state"
)

// turnContext flows through the compiled turn graph. The working
// conversation copy lives in turn.Conv; nothing touches the registry
// until the engine commits after a clean run.
type turnContext struct {
	turn    *nodes.Turn
	stage   statex.Status
	outcome routex.Outcome
	reply   contractx.Outbound
}

// compileTurnGraph builds the per-turn pipeline:
// extract -> route -> (stage executor | closing) -> settle -> compose.
func (e *Engine) compileTurnGraph(ctx context.Context) (compose.Runnable[*turnContext, *turnContext], error) {
	graph := compose.NewGraph[*turnContext, *turnContext]()

	if err := graph.AddLambdaNode("extract_turn",
		compose.InvokableLambda(func(ctx context.Context, tc *turnContext) (*turnContext, error) {
			if tc == nil || tc.turn == nil || tc.turn.Conv == nil {
				return nil, fmt.Errorf("%w: turn context is nil", contractx.ErrValidation)
			}
			ex, err := e.extractor.Extract(ctx, tc.turn.Inbound.Text, tc.turn.Conv.RecentHistory(e.cfg.HistoryWindow))
			if err != nil {
				return nil, fmt.Errorf("extract turn: %w", err)
			}
			tc.turn.Extraction = ex
			tc.turn.Conv.Append("user", tc.turn.Inbound.Text, tc.turn.Now)
			return tc, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add extract node: %w", err)
	}

	if err := graph.AddLambdaNode("route_stage",
		compose.InvokableLambda(func(ctx context.Context, tc *turnContext) (*turnContext, error) {
			tc.stage = routex.Next(tc.turn.Conv.Status, signalsFor(tc.turn.Conv, tc.turn.Extraction))
			return tc, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add route node: %w", err)
	}

	if err := graph.AddLambdaNode("run_stage",
		compose.InvokableLambda(func(ctx context.Context, tc *turnContext) (*turnContext, error) {
			exec, ok := e.executors[tc.stage]
			if !ok {
				return nil, fmt.Errorf("%w: no executor for stage %s", contractx.ErrValidation, tc.stage)
			}
			out, err := exec.Execute(ctx, tc.turn)
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w", tc.stage, err)
			}
			tc.outcome = out
			return tc, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add run node: %w", err)
	}

	if err := graph.AddLambdaNode("closing_stage",
		compose.InvokableLambda(func(ctx context.Context, tc *turnContext) (*turnContext, error) {
			out, err := e.executors[statex.StatusClosed].Execute(ctx, tc.turn)
			if err != nil {
				return nil, fmt.Errorf("closing stage: %w", err)
			}
			tc.outcome = out
			return tc, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add closing node: %w", err)
	}

	if err := graph.AddLambdaNode("settle_and_compose",
		compose.InvokableLambda(func(ctx context.Context, tc *turnContext) (*turnContext, error) {
			next := routex.Settle(tc.stage, tc.outcome)
			tc.turn.Conv.ApplyStatus(next, tc.turn.Now)

			reply, err := nodes.ComposeReply(tc.turn)
			if err != nil {
				return nil, err
			}
			tc.turn.Conv.Append("assistant", reply.Reply, tc.turn.Now)
			if err := tc.turn.Conv.Validate(); err != nil {
				return nil, fmt.Errorf("post-turn state invalid: %w", err)
			}
			tc.reply = reply
			return tc, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add settle node: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, tc *turnContext) (string, error) {
			if tc.stage == statex.StatusClosed {
				return "closing_stage", nil
			}
			return "run_stage", nil
		},
		map[string]bool{
			"run_stage":     true,
			"closing_stage": true,
		},
	)

	if err := graph.AddEdge(compose.START, "extract_turn"); err != nil {
		return nil, fmt.Errorf("add edge start->extract: %w", err)
	}
	if err := graph.AddEdge("extract_turn", "route_stage"); err != nil {
		return nil, fmt.Errorf("add edge extract->route: %w", err)
	}
	if err := graph.AddBranch("route_stage", branch); err != nil {
		return nil, fmt.Errorf("add stage branch: %w", err)
	}
	if err := graph.AddEdge("run_stage", "settle_and_compose"); err != nil {
		return nil, fmt.Errorf("add edge run->settle: %w", err)
	}
	if err := graph.AddEdge("closing_stage", "settle_and_compose"); err != nil {
		return nil, fmt.Errorf("add edge closing->settle: %w", err)
	}
	if err := graph.AddEdge("settle_and_compose", compose.END); err != nil {
		return nil, fmt.Errorf("add edge settle->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("engine.turn_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}

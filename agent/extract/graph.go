package extract

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/pawdesk/groomflow/agent/contract"
)

// compileExtractorGraph wires prompt -> model -> parse into one runnable.
// The system prompt is injected as a template variable, not inlined:
// it carries a literal JSON schema whose braces FString would otherwise
// parse as placeholders. The parse node salvages malformed model output
// into an empty IntentOther extraction instead of failing the turn;
// only transport and model errors propagate.
func compileExtractorGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
) (compose.Runnable[map[string]any, contractx.Extraction], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system_prompt}"),
		schema.UserMessage("{input}"),
	)

	parser := schema.NewMessageJSONParser[contractx.Extraction](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, contractx.Extraction]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add extractor prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add extractor model node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json",
		compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (contractx.Extraction, error) {
			out, err := parser.Parse(ctx, msg)
			if err != nil {
				log.Warn().Err(err).Msg("extractor output unparseable, treating as no-op turn")
				return contractx.Extraction{Intent: contractx.IntentOther}, nil
			}
			return out, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add extractor parser node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add extractor edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add extractor edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "parse_json"); err != nil {
		return nil, fmt.Errorf("add extractor edge model->parse: %w", err)
	}
	if err := graph.AddEdge("parse_json", compose.END); err != nil {
		return nil, fmt.Errorf("add extractor edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("extract.intake_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile extractor graph: %w", err)
	}
	return runner, nil
}

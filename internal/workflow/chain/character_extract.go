package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "storybook-ai-api/internal/domain/service"
	wfmodel "storybook-ai-api/internal/workflow/model"
	wfnode "storybook-ai-api/internal/workflow/node"
	workflowport "storybook-ai-api/internal/workflow/port"
	workflowprompt "storybook-ai-api/internal/workflow/prompt"
	"storybook-ai-api/pkg/logger"
)

// CharacterExtractChain 从故事正文抽取出场角色名单
type CharacterExtractChain struct {
	factory  workflowport.ChatModelFactory
	recorder llmctx.LLMUsageRecorder

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.CharacterExtractInput, *schema.Message]
	chainErr  error
}

func NewCharacterExtractChain(factory workflowport.ChatModelFactory, recorder llmctx.LLMUsageRecorder) *CharacterExtractChain {
	return &CharacterExtractChain{factory: factory, recorder: recorder}
}

func (c *CharacterExtractChain) Invoke(ctx context.Context, in *wfmodel.CharacterExtractInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}

	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, in)
}

type characterExtractChainState struct {
	In       *wfmodel.CharacterExtractInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *CharacterExtractChain) getChain() (compose.Runnable[*wfmodel.CharacterExtractInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *CharacterExtractChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.CharacterExtractInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.CharacterExtractInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *wfmodel.CharacterExtractInput) (*characterExtractChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			if strings.TrimSpace(in.StoryText) == "" {
				return nil, fmt.Errorf("story text is empty")
			}
			return &characterExtractChainState{In: in}, nil
		}),
		compose.WithNodeName("character_extract.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *characterExtractChainState) (*characterExtractChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptCharacterExtractV1)
			if err != nil {
				return nil, err
			}
			msgs, err := tpl.Format(ctx, map[string]any{
				"story_text": strings.TrimSpace(st.In.StoryText),
			})
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("character_extract.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *characterExtractChainState) (*characterExtractChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}

			provider := strings.TrimSpace(st.In.Provider)
			ctx = llmctx.WithWorkflowProvider(ctx, "character_extract", provider)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}

			start := time.Now()
			outMsg, err := chatModel.Generate(ctx, st.Messages, buildCharacterExtractModelOptions(st.In, true)...)
			if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"provider", provider,
					"model", strings.TrimSpace(st.In.Model),
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildCharacterExtractModelOptions(st.In, false)...)
			}
			recordLLMCall(ctx, c.recorder, provider, strings.TrimSpace(st.In.Model), start, outMsg, err)
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("character_extract.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *characterExtractChainState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("character_extract.finalize"),
	)

	return chain.Compile(ctx)
}

func buildCharacterExtractModelOptions(in *wfmodel.CharacterExtractInput, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if in == nil {
		return opts
	}
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if strings.TrimSpace(in.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(in.Model)))
	}

	if enableSchema {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   "character_extract",
					"strict": false,
					"schema": characterExtractJSONSchema(),
				},
			},
		}))
	}

	return opts
}

func characterExtractJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"characters"},
		"properties": map[string]any{
			"characters": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"name", "description"},
					"properties": map[string]any{
						"name":        map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

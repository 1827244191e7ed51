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

// CharacterProfileChain 为单个角色生成视觉档案
type CharacterProfileChain struct {
	factory  workflowport.ChatModelFactory
	recorder llmctx.LLMUsageRecorder

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.CharacterProfileInput, *schema.Message]
	chainErr  error
}

func NewCharacterProfileChain(factory workflowport.ChatModelFactory, recorder llmctx.LLMUsageRecorder) *CharacterProfileChain {
	return &CharacterProfileChain{factory: factory, recorder: recorder}
}

func (c *CharacterProfileChain) Invoke(ctx context.Context, in *wfmodel.CharacterProfileInput) (*schema.Message, error) {
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

type characterProfileChainState struct {
	In       *wfmodel.CharacterProfileInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *CharacterProfileChain) getChain() (compose.Runnable[*wfmodel.CharacterProfileInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *CharacterProfileChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.CharacterProfileInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.CharacterProfileInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *wfmodel.CharacterProfileInput) (*characterProfileChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			if strings.TrimSpace(in.StoryText) == "" {
				return nil, fmt.Errorf("story text is empty")
			}
			if strings.TrimSpace(in.CharacterName) == "" {
				return nil, fmt.Errorf("character name is empty")
			}
			return &characterProfileChainState{In: in}, nil
		}),
		compose.WithNodeName("character_profile.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *characterProfileChainState) (*characterProfileChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptCharacterProfileV1)
			if err != nil {
				return nil, err
			}
			descriptionBlock := ""
			if d := strings.TrimSpace(st.In.Description); d != "" {
				descriptionBlock = "Known description: " + d
			}
			msgs, err := tpl.Format(ctx, map[string]any{
				"story_text":        strings.TrimSpace(st.In.StoryText),
				"character_name":    strings.TrimSpace(st.In.CharacterName),
				"description_block": descriptionBlock,
			})
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("character_profile.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *characterProfileChainState) (*characterProfileChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}

			provider := strings.TrimSpace(st.In.Provider)
			ctx = llmctx.WithWorkflowProvider(ctx, "character_profile", provider)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}

			start := time.Now()
			outMsg, err := chatModel.Generate(ctx, st.Messages, buildCharacterProfileModelOptions(st.In, true)...)
			if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"provider", provider,
					"model", strings.TrimSpace(st.In.Model),
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildCharacterProfileModelOptions(st.In, false)...)
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
		compose.WithNodeName("character_profile.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *characterProfileChainState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("character_profile.finalize"),
	)

	return chain.Compile(ctx)
}

func buildCharacterProfileModelOptions(in *wfmodel.CharacterProfileInput, enableSchema bool) []model.Option {
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
					"name":   "character_profile",
					"strict": false,
					"schema": characterProfileJSONSchema(),
				},
			},
		}))
	}

	return opts
}

func characterProfileJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required": []any{
			"name", "species", "physical_description",
			"clothing", "distinctive_features", "personality_traits",
		},
		"properties": map[string]any{
			"name":                 map[string]any{"type": "string"},
			"species":              map[string]any{"type": "string"},
			"physical_description": map[string]any{"type": "string"},
			"clothing":             map[string]any{"type": "string"},
			"distinctive_features": map[string]any{"type": "string"},
			"personality_traits":   map[string]any{"type": "string"},
		},
	}
}

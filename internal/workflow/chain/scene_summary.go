package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "storybook-ai-api/internal/domain/service"
	wfmodel "storybook-ai-api/internal/workflow/model"
	wfnode "storybook-ai-api/internal/workflow/node"
	workflowport "storybook-ai-api/internal/workflow/port"
	workflowprompt "storybook-ai-api/internal/workflow/prompt"
)

// 场景原文超过这个长度就先截断再送模型，摘要不需要整页细节
const sceneSummaryInputMaxRunes = 4000

// SceneSummaryChain 把单页故事文本压缩成插画用的视觉摘要
type SceneSummaryChain struct {
	factory  workflowport.ChatModelFactory
	recorder llmctx.LLMUsageRecorder

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.SceneSummaryInput, *schema.Message]
	chainErr  error
}

func NewSceneSummaryChain(factory workflowport.ChatModelFactory, recorder llmctx.LLMUsageRecorder) *SceneSummaryChain {
	return &SceneSummaryChain{factory: factory, recorder: recorder}
}

func (c *SceneSummaryChain) Invoke(ctx context.Context, in *wfmodel.SceneSummaryInput) (*schema.Message, error) {
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

type sceneSummaryChainState struct {
	In       *wfmodel.SceneSummaryInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *SceneSummaryChain) getChain() (compose.Runnable[*wfmodel.SceneSummaryInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *SceneSummaryChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.SceneSummaryInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.SceneSummaryInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *wfmodel.SceneSummaryInput) (*sceneSummaryChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			if strings.TrimSpace(in.SceneText) == "" {
				return nil, fmt.Errorf("scene text is empty")
			}
			return &sceneSummaryChainState{In: in}, nil
		}),
		compose.WithNodeName("scene_summary.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *sceneSummaryChainState) (*sceneSummaryChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptSceneSummaryV1)
			if err != nil {
				return nil, err
			}
			charactersBlock := strings.TrimSpace(st.In.CharactersBlock)
			if charactersBlock == "" {
				charactersBlock = "(none listed)"
			}
			msgs, err := tpl.Format(ctx, map[string]any{
				"scene_text":       wfnode.TruncateByRunes(strings.TrimSpace(st.In.SceneText), sceneSummaryInputMaxRunes),
				"characters_block": charactersBlock,
			})
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("scene_summary.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *sceneSummaryChainState) (*sceneSummaryChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}

			provider := strings.TrimSpace(st.In.Provider)
			ctx = llmctx.WithWorkflowProvider(ctx, "scene_summary", provider)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}

			start := time.Now()
			outMsg, err := chatModel.Generate(ctx, st.Messages, buildSceneSummaryModelOptions(st.In)...)
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
		compose.WithNodeName("scene_summary.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *sceneSummaryChainState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("scene_summary.finalize"),
	)

	return chain.Compile(ctx)
}

func buildSceneSummaryModelOptions(in *wfmodel.SceneSummaryInput) []model.Option {
	opts := make([]model.Option, 0, 3)
	if in == nil {
		return opts
	}
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	// 摘要不超过两句话，默认收紧输出预算
	maxTokens := 160
	if in.MaxTokens != nil {
		maxTokens = *in.MaxTokens
	}
	opts = append(opts, model.WithMaxTokens(maxTokens))
	if strings.TrimSpace(in.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(in.Model)))
	}
	return opts
}

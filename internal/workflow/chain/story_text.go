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
	workflowport "storybook-ai-api/internal/workflow/port"
	workflowprompt "storybook-ai-api/internal/workflow/prompt"
)

// StoryTextChain 生成故事正文（连续散文，无分页标记）
type StoryTextChain struct {
	factory  workflowport.ChatModelFactory
	recorder llmctx.LLMUsageRecorder

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.StoryTextInput, *schema.Message]
	chainErr  error
}

func NewStoryTextChain(factory workflowport.ChatModelFactory, recorder llmctx.LLMUsageRecorder) *StoryTextChain {
	return &StoryTextChain{factory: factory, recorder: recorder}
}

func (c *StoryTextChain) Invoke(ctx context.Context, in *wfmodel.StoryTextInput) (*schema.Message, error) {
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

type storyTextChainState struct {
	In       *wfmodel.StoryTextInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *StoryTextChain) getChain() (compose.Runnable[*wfmodel.StoryTextInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *StoryTextChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.StoryTextInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.StoryTextInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *wfmodel.StoryTextInput) (*storyTextChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			if strings.TrimSpace(in.StoryRequest) == "" {
				return nil, fmt.Errorf("story request is empty")
			}
			return &storyTextChainState{In: in}, nil
		}),
		compose.WithNodeName("story_text.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *storyTextChainState) (*storyTextChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptStoryGenV1)
			if err != nil {
				return nil, err
			}
			msgs, err := tpl.Format(ctx, map[string]any{
				"story_request": strings.TrimSpace(st.In.StoryRequest),
			})
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("story_text.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *storyTextChainState) (*storyTextChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}

			provider := strings.TrimSpace(st.In.Provider)
			ctx = llmctx.WithWorkflowProvider(ctx, "story_text_generate", provider)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}

			start := time.Now()
			outMsg, err := chatModel.Generate(ctx, st.Messages, buildStoryTextModelOptions(st.In)...)
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
		compose.WithNodeName("story_text.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *storyTextChainState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("story_text.finalize"),
	)

	return chain.Compile(ctx)
}

func buildStoryTextModelOptions(in *wfmodel.StoryTextInput) []model.Option {
	opts := make([]model.Option, 0, 3)
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
	return opts
}

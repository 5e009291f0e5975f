package llm

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBedrock struct {
	gotInput *bedrockruntime.ConverseInput
	out      *bedrockruntime.ConverseOutput
	err      error
}

func (f *fakeBedrock) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.gotInput = params
	return f.out, f.err
}

func (f *fakeBedrock) ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	return nil, f.err
}

func TestBedrockCompleteMapsMessages(t *testing.T) {
	fake := &fakeBedrock{
		out: &bedrockruntime.ConverseOutput{
			Output: &brtypes.ConverseOutputMemberMessage{
				Value: brtypes.Message{
					Content: []brtypes.ContentBlock{
						&brtypes.ContentBlockMemberText{Value: "We open at 9am."},
					},
				},
			},
			StopReason: brtypes.StopReasonEndTurn,
			Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(12), OutputTokens: aws.Int32(6), TotalTokens: aws.Int32(18)},
		},
	}
	client := NewBedrockClient(fake)

	resp, err := client.Complete(context.Background(), Request{
		Model:  "anthropic.claude-3-haiku",
		System: []string{"Persona prompt"},
		Messages: []ChatMessage{
			{Role: ChatRoleSystem, Content: "Extra system context"},
			{Role: ChatRoleUser, Content: "When do you open?"},
		},
		MaxTokens: 200,
	})
	require.NoError(t, err)

	assert.Equal(t, "We open at 9am.", resp.Text)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, int32(18), resp.Usage.TotalTokens)

	// System-role chat messages are folded into system blocks.
	require.Len(t, fake.gotInput.System, 2)
	require.Len(t, fake.gotInput.Messages, 1)
	require.NotNil(t, fake.gotInput.InferenceConfig)
	assert.Equal(t, int32(200), *fake.gotInput.InferenceConfig.MaxTokens)
}

func TestBedrockCompleteRequiresModel(t *testing.T) {
	client := NewBedrockClient(&fakeBedrock{})
	_, err := client.Complete(context.Background(), Request{
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})
	assert.Error(t, err)
}

func TestBedrockCompleteRejectsUnknownRole(t *testing.T) {
	client := NewBedrockClient(&fakeBedrock{})
	_, err := client.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []ChatMessage{{Role: "narrator", Content: "hi"}},
	})
	assert.Error(t, err)
}

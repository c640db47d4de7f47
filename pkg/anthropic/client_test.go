package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: "血糖偏高，"},
			{Type: "text", Text: "建议复查。"},
		},
	}
	assert.Equal(t, "血糖偏高，建议复查。", resp.Text())

	var nilResp *MessageResponse
	assert.Equal(t, "", nilResp.Text())
	assert.Equal(t, "", (&MessageResponse{}).Text())
}

func TestToSDKMessages(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "分析这份报告"},
		{Role: "assistant", Content: "好的"},
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
}

func TestMockClient(t *testing.T) {
	m := &MockClient{}
	m.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&MessageResponse{Content: []ContentBlock{{Type: "text", Text: "ok"}}}, nil)

	resp, err := m.CreateMessage(context.Background(), MessageRequest{Model: "claude-sonnet-4-5", MaxTokens: 1024})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	m.AssertExpectations(t)
}

package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a testify mock of Client.
//
//	m := new(llm.MockClient)
//	m.On("Generate", mock.Anything, mock.MatchedBy(containsString("Test")), mock.Anything).
//	    Return("No issues", nil)
type MockClient struct {
	mock.Mock
}

var _ Client = (*MockClient)(nil)

// Generate implements Client.
func (m *MockClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

package claims_test

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockTokenSource struct {
	mock.Mock
}

func (m *MockTokenSource) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	args := m.Called(ctx, forceRefresh)
	return args.String(0), args.Error(1)
}

type MockFreshTokenSource struct {
	MockTokenSource
}

func (m *MockFreshTokenSource) Refreshed() bool {
	return m.Called().Bool(0)
}

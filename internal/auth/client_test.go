package auth

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfiguredCredentialsSkipPrompt(t *testing.T) {
	var out bytes.Buffer
	flow := newAuthFlow("+79991234567", "hunter2", strings.NewReader(""), &out, zap.NewNop().Sugar())

	phone, err := flow.Phone(context.Background())
	require.NoError(t, err)
	password, err := flow.Password(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "+79991234567", phone)
	assert.Equal(t, "hunter2", password)
	assert.Empty(t, out.String())
}

func TestPromptsForMissingValues(t *testing.T) {
	var out bytes.Buffer
	flow := newAuthFlow("", "", strings.NewReader("+79990000000\n 12345 \nsecret"), &out, zap.NewNop().Sugar())

	phone, err := flow.Phone(context.Background())
	require.NoError(t, err)
	code, err := flow.Code(context.Background(), &tg.AuthSentCode{})
	require.NoError(t, err)
	password, err := flow.Password(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "+79990000000", phone)
	assert.Equal(t, "12345", code)
	assert.Equal(t, "secret", password)
	assert.Contains(t, out.String(), "Введите код из Telegram")
}

func TestEmptyAnswerFails(t *testing.T) {
	flow := newAuthFlow("", "", strings.NewReader("\n"), &bytes.Buffer{}, zap.NewNop().Sugar())

	_, err := flow.Phone(context.Background())
	assert.Error(t, err)

	_, err = flow.Code(context.Background(), &tg.AuthSentCode{})
	assert.Error(t, err)
}

func TestSignUpUnsupported(t *testing.T) {
	flow := newAuthFlow("", "", strings.NewReader(""), &bytes.Buffer{}, zap.NewNop().Sugar())

	_, err := flow.SignUp(context.Background())
	assert.Error(t, err)
	assert.NoError(t, flow.AcceptTermsOfService(context.Background(), tg.HelpTermsOfService{}))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Иван", displayName(&tg.User{FirstName: "Иван"}))
	assert.Equal(t, "Иван Петров (@ivan)", displayName(&tg.User{FirstName: "Иван", LastName: "Петров", Username: "ivan"}))
}

package config

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSMClient struct {
	calls   [][]string
	invalid []string
	err     error
}

func (f *fakeSSMClient) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.calls = append(f.calls, in.Names)
	if f.err != nil {
		return nil, f.err
	}
	out := &ssm.GetParametersOutput{InvalidParameters: f.invalid}
	for _, name := range in.Names {
		out.Parameters = append(out.Parameters, ssmtypes.Parameter{
			Name:  aws.String(name),
			Value: aws.String("v:" + name),
		})
	}
	return out, nil
}

func TestSSMProvider_BatchesByTen(t *testing.T) {
	client := &fakeSSMClient{}
	p := newSSMProviderWithClient("ap-northeast-1", client)

	keys := make([]string, 23)
	for i := range keys {
		keys[i] = fmt.Sprintf("/prod/railrisk/k%d", i)
	}

	out, err := p.GetParametersBatch(context.Background(), keys)
	require.NoError(t, err)

	require.Len(t, client.calls, 3)
	assert.Len(t, client.calls[0], 10)
	assert.Len(t, client.calls[2], 3)
	assert.Len(t, out, 23)
	assert.Equal(t, "v:/prod/railrisk/k7", out["/prod/railrisk/k7"])
}

func TestSSMProvider_EmptyKeys(t *testing.T) {
	client := &fakeSSMClient{}
	out, err := newSSMProviderWithClient("ap-northeast-1", client).GetParametersBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, client.calls)
}

func TestSSMProvider_InvalidParameters(t *testing.T) {
	client := &fakeSSMClient{invalid: []string{"/prod/railrisk/missing"}}
	_, err := newSSMProviderWithClient("ap-northeast-1", client).
		GetParametersBatch(context.Background(), []string{"/prod/railrisk/missing"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSSMProvider_ClientError(t *testing.T) {
	boom := errors.New("access denied")
	_, err := newSSMProviderWithClient("ap-northeast-1", &fakeSSMClient{err: boom}).
		GetParametersBatch(context.Background(), []string{"/a"})

	assert.ErrorIs(t, err, boom)
}

func TestSSMProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSSMProviderWithClient("ap-northeast-1", &fakeSSMClient{}).
		GetParametersBatch(ctx, []string{"/a"})

	assert.ErrorIs(t, err, context.Canceled)
}

package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zhibo-copilot-go/src/core/providers"
	"zhibo-copilot-go/src/core/providers/asr"
	"zhibo-copilot-go/src/core/utils"
)

type fakeProvider struct {
	*asr.BaseProvider
	initialized atomic.Bool
	cleaned     atomic.Bool
}

func (f *fakeProvider) Initialize() error {
	f.initialized.Store(true)
	return nil
}

func (f *fakeProvider) Cleanup() error {
	f.cleaned.Store(true)
	return nil
}

func (f *fakeProvider) Transcribe(context.Context, []byte) (*providers.ASRResult, error) {
	return &providers.ASRResult{Text: "测试", Confidence: 0.9}, nil
}

func newFakeFactory(created *atomic.Int32) Factory {
	return func() (asr.Provider, error) {
		created.Add(1)
		return &fakeProvider{BaseProvider: asr.NewBaseProvider(&asr.Config{Name: "fake"})}, nil
	}
}

func TestNewASRPool_Prefills(t *testing.T) {
	var created atomic.Int32
	p, err := NewASRPool("asr", newFakeFactory(&created), Config{Size: 3}, nil)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, int32(3), created.Load())
	assert.Equal(t, 3, p.Stats()["idle"])
}

func TestAcquireRelease(t *testing.T) {
	var created atomic.Int32
	p, err := NewASRPool("asr", newFakeFactory(&created), Config{Size: 2}, nil)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	b, err := p.Acquire(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, p.Stats()["idle"])
	assert.Equal(t, 2, p.Stats()["acquired"])

	p.Release(a)
	p.Release(b)
	assert.Equal(t, 2, p.Stats()["idle"])
	assert.Equal(t, int32(2), created.Load())
}

func TestAcquire_TimesOutWhenExhausted(t *testing.T) {
	var created atomic.Int32
	p, err := NewASRPool("asr", newFakeFactory(&created), Config{
		Size:           1,
		AcquireTimeout: utils.Duration(50 * time.Millisecond),
	}, nil)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Acquire(context.Background())
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	assert.Error(t, err)
}

func TestAcquire_RespectsContext(t *testing.T) {
	var created atomic.Int32
	p, err := NewASRPool("asr", newFakeFactory(&created), Config{Size: 1}, nil)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClose_CleansIdleProviders(t *testing.T) {
	var created atomic.Int32
	p, err := NewASRPool("asr", newFakeFactory(&created), Config{Size: 2}, nil)
	require.NoError(t, err)

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)

	p.Close()

	_, err = p.Acquire(context.Background())
	assert.Error(t, err)

	// 关闭后归还的实例直接清理
	p.Release(a)
	assert.True(t, a.(*fakeProvider).cleaned.Load())
}

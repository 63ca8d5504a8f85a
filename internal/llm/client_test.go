package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel is a langchaingo model with a scripted reply.
type fakeModel struct {
	reply string
	err   error
	delay time.Duration
	got   []llms.CallOption
}

func (f *fakeModel) GenerateContent(ctx context.Context, _ []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = options
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLangChain_Generate(t *testing.T) {
	m := &fakeModel{reply: "Approve"}
	c := NewWithModel("fake", m, Config{RateLimit: -1})

	out, err := c.Generate(context.Background(), "Review login", Options{})
	require.NoError(t, err)
	assert.Equal(t, "Approve", out)
	assert.Len(t, m.got, 2)
	assert.Equal(t, "fake", c.Provider())
}

func TestLangChain_Temperature(t *testing.T) {
	temperature := func(opts []llms.CallOption) float64 {
		var o llms.CallOptions
		for _, opt := range opts {
			opt(&o)
		}
		return o.Temperature
	}

	tests := []struct {
		name string
		cfg  *float64
		call *float64
		want float64
	}{
		{name: "default", want: defaultTemperature},
		{name: "configured zero", cfg: Temperature(0), want: 0},
		{name: "per call zero", cfg: Temperature(0.7), call: Temperature(0), want: 0},
		{name: "per call", call: Temperature(1.1), want: 1.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeModel{reply: "ok"}
			c := NewWithModel("fake", m, Config{RateLimit: -1, Temperature: tt.cfg})

			_, err := c.Generate(context.Background(), "p", Options{Temperature: tt.call})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, temperature(m.got), 1e-9)
		})
	}
}

func TestLangChain_Timeout(t *testing.T) {
	m := &fakeModel{reply: "late", delay: time.Second}
	c := NewWithModel("fake", m, Config{RateLimit: -1})

	_, err := c.Generate(context.Background(), "p", Options{Timeout: 10 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsTimeout(err))

	var ce *CallError
	assert.False(t, errors.As(err, &ce))
}

func TestLangChain_CallError(t *testing.T) {
	cause := errors.New("connection refused")
	m := &fakeModel{err: cause}
	c := NewWithModel("fake", m, Config{RateLimit: -1})

	_, err := c.Generate(context.Background(), "p", Options{})
	require.Error(t, err)

	var ce *CallError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "fake", ce.Provider)
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsTimeout(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLangChain_ParentCancelIsNotTimeout(t *testing.T) {
	m := &fakeModel{reply: "late", delay: time.Second}
	c := NewWithModel("fake", m, Config{RateLimit: -1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Generate(ctx, "p", Options{Timeout: time.Minute})
	require.Error(t, err)
	assert.False(t, IsTimeout(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLangChain_RateLimited(t *testing.T) {
	m := &fakeModel{reply: "ok"}
	c := NewWithModel("fake", m, Config{RateLimit: 0.001, Burst: 1})

	_, err := c.Generate(context.Background(), "first", Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Generate(ctx, "second", Options{})
	require.Error(t, err)
	var ce *CallError
	assert.True(t, errors.As(err, &ce))
}

func TestNew_Providers(t *testing.T) {
	_, err := New(Config{Provider: "bard"})
	assert.ErrorContains(t, err, "unsupported provider")

	_, err = New(Config{Provider: ProviderOpenAI})
	assert.ErrorContains(t, err, "API key required")

	_, err = New(Config{Provider: ProviderAnthropic})
	assert.ErrorContains(t, err, "API key required")

	c, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, c.Provider())
}

func TestInstrument_PassesThrough(t *testing.T) {
	inner := ClientFunc(func(_ context.Context, prompt string, _ Options) (string, error) {
		if prompt == "boom" {
			return "", &CallError{Provider: "x", Err: errors.New("boom")}
		}
		return "echo " + prompt, nil
	})
	c := Instrument(inner, "x", nil)

	out, err := c.Generate(context.Background(), "hi", Options{})
	require.NoError(t, err)
	assert.Equal(t, "echo hi", out)

	_, err = c.Generate(context.Background(), "boom", Options{})
	assert.Error(t, err)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "timeout", outcome(ErrTimeout))
	assert.Equal(t, "error", outcome(errors.New("x")))
}

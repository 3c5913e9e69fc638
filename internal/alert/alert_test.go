package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []*telego.SendMessageParams
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, p *telego.SendMessageParams) (*telego.Message, error) {
	f.sent = append(f.sent, p)
	if f.err != nil {
		return nil, f.err
	}
	return &telego.Message{}, nil
}

func TestTelegram_Alert(t *testing.T) {
	s := &fakeSender{}
	tg := NewTelegramWithSender(s, 4242)

	require.NoError(t, tg.Alert(context.Background(), "run failed: nightly-10.0.0.1", "connect refused\n"))
	require.Len(t, s.sent, 1)
	assert.Equal(t, int64(4242), s.sent[0].ChatID.ID)
	assert.Equal(t, "run failed: nightly-10.0.0.1\n\nconnect refused", s.sent[0].Text)
}

func TestTelegram_AlertError(t *testing.T) {
	tg := NewTelegramWithSender(&fakeSender{err: errors.New("429")}, 1)
	assert.Error(t, tg.Alert(context.Background(), "x", ""))
}

func TestNewTelegram_BadToken(t *testing.T) {
	_, err := NewTelegram("not-a-token", 1)
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Alert(context.Background(), "x", "y"))
}

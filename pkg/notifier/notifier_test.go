package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tarun553/study-coach/internal/config"
)

func sampleNotification() Notification {
	return Notification{
		RunID:   "run-1",
		Topic:   "Go concurrency",
		Goal:    "Understand channels",
		Minutes: 45,
		Email:   "learner@example.com",
		Name:    "Learner",
	}
}

func TestMailer_ComposesFullMessage(t *testing.T) {
	m := NewMailer(config.MailConfig{
		From:     "coach@example.com",
		FromName: "Study Coach",
		BaseURL:  "https://coach.example.com/",
	}, zerolog.Nop())

	msg := m.compose(sampleNotification())
	assert.Contains(t, msg, "From: Study Coach <coach@example.com>\r\n")
	assert.Contains(t, msg, "To: learner@example.com\r\n")
	assert.Contains(t, msg, "Subject: Study Reminder: Go concurrency\r\n")
	assert.Contains(t, msg, "Hi Learner,")
	assert.Contains(t, msg, "45 minutes")
	assert.Contains(t, msg, "Your goal: Understand channels")
	assert.Contains(t, msg, "https://coach.example.com/runs/run-1")
}

func TestMailer_SendsOverSMTP(t *testing.T) {
	m := NewMailer(config.MailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "coach",
		Password: "secret",
		From:     "coach@example.com",
	}, zerolog.Nop())

	var gotAddr, gotFrom string
	var gotTo []string
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo = addr, from, to
		return nil
	}

	require.NoError(t, m.Notify(context.Background(), sampleNotification()))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "coach@example.com", gotFrom)
	assert.Equal(t, []string{"learner@example.com"}, gotTo)
}

func TestMailer_LogOnlyModeSucceeds(t *testing.T) {
	m := NewMailer(config.MailConfig{From: "coach@example.com"}, zerolog.Nop())
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("must not hit SMTP in log-only mode")
		return nil
	}

	assert.NoError(t, m.Notify(context.Background(), sampleNotification()))
}

func TestMailer_NoEmailIsNoRecipient(t *testing.T) {
	m := NewMailer(config.MailConfig{Host: "smtp.example.com"}, zerolog.Nop())

	n := sampleNotification()
	n.Email = ""
	assert.ErrorIs(t, m.Notify(context.Background(), n), ErrNoRecipient)
}

type fakeTelegramAPI struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeTelegramAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegram_SendsToChat(t *testing.T) {
	api := &fakeTelegramAPI{}
	tg := &Telegram{api: api, logger: zerolog.Nop()}

	n := sampleNotification()
	n.TelegramChatID = 12345
	require.NoError(t, tg.Notify(context.Background(), n))

	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(12345), msg.ChatID)
	assert.Contains(t, msg.Text, "Go concurrency")
}

func TestTelegram_NoChatIsNoRecipient(t *testing.T) {
	tg := &Telegram{api: &fakeTelegramAPI{}, logger: zerolog.Nop()}

	assert.ErrorIs(t, tg.Notify(context.Background(), sampleNotification()), ErrNoRecipient)
}

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Notify(_ context.Context, _ Notification) error {
	s.calls++
	return s.err
}

func TestFanout_SucceedsWhenOneChannelDelivers(t *testing.T) {
	failing := &stubNotifier{err: fmt.Errorf("smtp down")}
	working := &stubNotifier{}
	f := NewFanout(zerolog.Nop(), failing, working)

	assert.NoError(t, f.Notify(context.Background(), sampleNotification()))
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, working.calls)
}

func TestFanout_NoRecipientAnywhere(t *testing.T) {
	f := NewFanout(zerolog.Nop(), &stubNotifier{err: ErrNoRecipient})

	assert.ErrorIs(t, f.Notify(context.Background(), sampleNotification()), ErrNoRecipient)
}

func TestFanout_AllChannelsFailed(t *testing.T) {
	f := NewFanout(zerolog.Nop(), &stubNotifier{err: fmt.Errorf("smtp down")})

	err := f.Notify(context.Background(), sampleNotification())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRecipient)
}

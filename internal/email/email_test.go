package email

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

func TestPasswordResetMessage(t *testing.T) {
	msg := PasswordResetMessage("a@b.co", "https://meeplehall.test/", "tok+en")
	assert.Equal(t, "a@b.co", msg.To)
	assert.Contains(t, msg.Text, "https://meeplehall.test/reset-password?token=tok%2Ben")
	assert.Contains(t, msg.HTML, "reset-password?token=tok%2Ben")
}

func TestSESSender_BuildsRequest(t *testing.T) {
	fake := &fakeSES{}
	s := &SESSender{client: fake, fromEmail: "no-reply@meeplehall.test", fromName: "Meeple Hall"}

	require.NoError(t, s.Send(context.Background(), WelcomeMessage("new@b.co", "Ana", "https://meeplehall.test")))
	require.NotNil(t, fake.input)
	assert.Equal(t, "Meeple Hall <no-reply@meeplehall.test>", aws.ToString(fake.input.Source))
	assert.Equal(t, []string{"new@b.co"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "Welcome to Meeple Hall", aws.ToString(fake.input.Message.Subject.Data))
	assert.NotNil(t, fake.input.Message.Body.Html)
	assert.NotNil(t, fake.input.Message.Body.Text)
}

func TestSESSender_WrapsError(t *testing.T) {
	boom := errors.New("throttled")
	s := &SESSender{client: &fakeSES{err: boom}, fromEmail: "x@y.z"}
	err := s.Send(context.Background(), Message{To: "a@b.co", Subject: "s", Text: "t"})
	assert.ErrorIs(t, err, boom)
}

func TestLogSender_KeepsRecentMessages(t *testing.T) {
	s := NewLogSender(nil)
	for i := 0; i < 60; i++ {
		require.NoError(t, s.Send(context.Background(), Message{To: "a@b.co", Subject: "s"}))
	}
	assert.Len(t, s.Sent(), 50)
}

package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSendGrid struct {
	status int
	err    error
	got    *mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.got = email
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status, Body: "{}"}, nil
}

type fakeSES struct {
	err error
	got *sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

var question = Mail{
	To:      "stuart@example.com",
	Subject: "New Ask Stuart question from Ann",
	Text:    "Question: What is my unit worth?",
	HTML:    "<p>What is my unit worth?</p>",
}

func TestNewSendGridSenderNeedsKey(t *testing.T) {
	assert.Nil(t, NewSendGridSender(" ", From{Email: "noreply@example.com"}, nil))

	s := NewSendGridSender("SG.key", From{Email: "noreply@example.com"}, nil)
	require.NotNil(t, s)
	assert.Equal(t, "Ask Stuart", s.from.Name)
}

func TestSendGridSenderBuildsMessage(t *testing.T) {
	api := &fakeSendGrid{status: 202}
	s := newSendGridSender(api, From{Email: "noreply@example.com", Name: "Stuart's Desk"}, nil)

	require.NoError(t, s.Send(context.Background(), question))
	require.NotNil(t, api.got)
	assert.Equal(t, "noreply@example.com", api.got.From.Address)
	assert.Equal(t, "Stuart's Desk", api.got.From.Name)
	assert.Equal(t, question.Subject, api.got.Subject)
	require.Len(t, api.got.Personalizations, 1)
	require.Len(t, api.got.Personalizations[0].To, 1)
	assert.Equal(t, "stuart@example.com", api.got.Personalizations[0].To[0].Address)
	require.Len(t, api.got.Content, 2)
	assert.Equal(t, "text/plain", api.got.Content[0].Type)
	assert.Equal(t, "text/html", api.got.Content[1].Type)
	assert.Equal(t, []string{mailCategory}, api.got.Categories)
}

func TestSendGridSenderTextOnly(t *testing.T) {
	api := &fakeSendGrid{status: 202}
	s := newSendGridSender(api, From{Email: "noreply@example.com"}, nil)

	m := question
	m.HTML = ""
	require.NoError(t, s.Send(context.Background(), m))
	require.Len(t, api.got.Content, 1)
	assert.Equal(t, "text/plain", api.got.Content[0].Type)
}

func TestSendGridSenderErrors(t *testing.T) {
	rejected := newSendGridSender(&fakeSendGrid{status: 401}, From{Email: "noreply@example.com"}, nil)
	err := rejected.Send(context.Background(), question)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	down := newSendGridSender(&fakeSendGrid{err: errors.New("dial tcp")}, From{}, nil)
	assert.ErrorContains(t, down.Send(context.Background(), question), "dial tcp")

	api := &fakeSendGrid{status: 202}
	incomplete := newSendGridSender(api, From{}, nil)
	assert.ErrorIs(t, incomplete.Send(context.Background(), Mail{Subject: "no recipient"}), ErrIncompleteMail)
	assert.Nil(t, api.got, "incomplete mail must not reach the provider")
}

func TestNewSESSenderNeedsClient(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, From{Email: "noreply@example.com"}, nil))
}

func TestSESSenderBuildsInput(t *testing.T) {
	api := &fakeSES{}
	s := newSESSender(api, From{Email: "noreply@example.com", Name: "Ask Stuart"}, nil)

	require.NoError(t, s.Send(context.Background(), question))
	in := api.got
	require.NotNil(t, in)
	assert.Equal(t, `"Ask Stuart" <noreply@example.com>`, aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"stuart@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, question.Subject, aws.ToString(in.Content.Simple.Subject.Data))
	assert.Equal(t, question.Text, aws.ToString(in.Content.Simple.Body.Text.Data))
	require.NotNil(t, in.Content.Simple.Body.Html)
	assert.Equal(t, "UTF-8", aws.ToString(in.Content.Simple.Body.Html.Charset))
	require.Len(t, in.EmailTags, 1)
	assert.Equal(t, mailCategory, aws.ToString(in.EmailTags[0].Value))
}

func TestSESSenderWrapsError(t *testing.T) {
	s := newSESSender(&fakeSES{err: errors.New("throttled")}, From{Email: "noreply@example.com"}, nil)
	assert.ErrorContains(t, s.Send(context.Background(), question), "notify: ses: throttled")
}

func TestDevSenderRecords(t *testing.T) {
	s := NewDevSender(nil)
	require.NoError(t, s.Send(context.Background(), question))
	assert.ErrorIs(t, s.Send(context.Background(), Mail{To: "x@example.com"}), ErrIncompleteMail)

	sent := s.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, question.Subject, sent[0].Subject)
}

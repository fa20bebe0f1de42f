package notify

import (
	"context"
	"fmt"
	netmail "net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/askstuart/pkg/logging"
)

// NewSESClient loads the default AWS credential chain for region.
func NewSESClient(ctx context.Context, region string) (*sesv2.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("notify: load aws config: %w", err)
	}
	return sesv2.NewFromConfig(awsCfg), nil
}

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender delivers mail through Amazon SES v2.
type SESSender struct {
	api    sesAPI
	from   From
	tracer trace.Tracer
	logger *logging.Logger
}

// NewSESSender returns nil for a nil client.
func NewSESSender(client *sesv2.Client, from From, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	return newSESSender(client, from, logger)
}

func newSESSender(api sesAPI, from From, logger *logging.Logger) *SESSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SESSender{
		api:    api,
		from:   from.withDefaults(),
		tracer: otel.Tracer("askstuart.internal.notify"),
		logger: logger,
	}
}

func utf8Content(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

func (s *SESSender) input(m Mail) *sesv2.SendEmailInput {
	body := &types.Body{Text: utf8Content(m.Text)}
	if m.HTML != "" {
		body.Html = utf8Content(m.HTML)
	}
	from := netmail.Address{Name: s.from.Name, Address: s.from.Email}
	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from.String()),
		Destination:      &types.Destination{ToAddresses: []string{m.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: utf8Content(m.Subject), Body: body},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("category"), Value: aws.String(mailCategory)},
		},
	}
}

func (s *SESSender) Send(ctx context.Context, m Mail) error {
	if err := m.validate(); err != nil {
		return err
	}
	ctx, span := s.tracer.Start(ctx, "notify.ses.send")
	defer span.End()

	out, err := s.api.SendEmail(ctx, s.input(m))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("notify: ses: %w", err)
	}
	s.logger.Debug("notification emailed", "provider", "ses", "ses_message_id", aws.ToString(out.MessageId))
	return nil
}

var _ EmailSender = (*SESSender)(nil)

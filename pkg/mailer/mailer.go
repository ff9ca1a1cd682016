package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sirupsen/logrus"
)

// Sender delivers a plain-text notification email. Booking transitions call
// it best-effort; a failed send never fails the transition.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SESMailer sends mail through Amazon SES v2.
type SESMailer struct {
	client *sesv2.Client
	from   string
}

func NewSESMailer(ctx context.Context, region, from string) (*SESMailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SESMailer{client: sesv2.NewFromConfig(cfg), from: from}, nil
}

func (m *SESMailer) Send(ctx context.Context, to, subject, body string) error {
	_, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

// LogMailer is used when SES is not configured (local development); it just
// writes the notification to the log.
type LogMailer struct {
	Log *logrus.Logger
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.Log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info(body)
	return nil
}

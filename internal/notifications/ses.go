package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// sesAPI is the slice of the SES client the service uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESService emails operator notifications through Amazon SES. Credentials
// come from the default AWS chain.
type SESService struct {
	client sesAPI
	from   string
	to     []string
}

// NewSESService loads AWS config for region.
func NewSESService(ctx context.Context, region, from string, to []string) (*SESService, error) {
	if from == "" || len(to) == 0 {
		return nil, errors.New("ses notifications require a sender and at least one recipient")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSESService(sesv2.NewFromConfig(awsCfg), from, to), nil
}

func newSESService(client sesAPI, from string, to []string) *SESService {
	return &SESService{client: client, from: from, to: append([]string(nil), to...)}
}

func (s *SESService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: s.to,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.title)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send ses notification: %w", err)
	}
	return nil
}

package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"blog-cms/config"
	"blog-cms/logging"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// sqsClient is the subset of the SQS client the dispatcher uses.
type sqsClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSDispatcher publishes every message as JSON to an SQS queue; a separate
// mailer consumes the queue.
type SQSDispatcher struct {
	queueURL string
	client   sqsClient
}

func NewSQSDispatcher(ctx context.Context, cfg config.SQSConfig) (*SQSDispatcher, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		opts = append(opts, awscfg.WithCredentialsProvider(creds))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newSQSDispatcher(cfg.QueueURL, sqs.NewFromConfig(awsCfg)), nil
}

func newSQSDispatcher(queueURL string, client sqsClient) *SQSDispatcher {
	return &SQSDispatcher{queueURL: queueURL, client: client}
}

func (d *SQSDispatcher) Name() string { return DriverSQS }

func (d *SQSDispatcher) Dispatch(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.Event),
			},
			"article_id": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatUint(uint64(msg.ArticleID), 10)),
			},
		},
	}

	resp, err := d.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("send message to sqs: %w", err)
	}
	logging.ExtractLogger(ctx).Debug().
		Str("message_id", msg.ID).
		Str("sqs_message_id", aws.ToString(resp.MessageId)).
		Msg("notification queued on sqs")
	return nil
}

func (d *SQSDispatcher) Close() error { return nil }

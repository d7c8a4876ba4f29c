package collector

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/Luismorlan/postmux/normalizer"
	Logger "github.com/Luismorlan/postmux/utils/log"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/pkg/errors"
)

const (
	// SQS caps a single receive at 10 messages and long polling at 20s.
	maxMessagesPerReceive = 10
	maxWaitTimeSeconds    = 20
)

// SQSSource long-polls a queue whose message bodies are raw posts. A message is
// deleted once its post has been handed out, bodies that are not JSON objects
// are logged and deleted right away.
type SQSSource struct {
	ctx         context.Context
	client      sqsiface.SQSAPI
	queueName   string
	url         string
	waitSeconds int64

	// Consecutive empty receives after which Next returns io.EOF, 0 polls
	// forever.
	MaxEmptyPolls int
	emptyPolls    int

	buffer []*sqs.Message
}

// NewSQSSource resolves queueName with the default credential chain. ctx bounds
// every later receive.
func NewSQSSource(ctx context.Context, queueName string, waitSeconds int64) (*SQSSource, error) {
	// Initialize a session that the SDK will use to load
	// credentials from the shared credentials file. (~/.aws/credentials).
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.Wrap(err, "fail to create aws session")
	}
	return NewSQSSourceWithClient(ctx, sqs.New(sess), queueName, waitSeconds)
}

func NewSQSSourceWithClient(ctx context.Context, client sqsiface.SQSAPI, queueName string, waitSeconds int64) (*SQSSource, error) {
	if queueName == "" {
		return nil, errors.New("please specify queue name")
	}
	if waitSeconds < 0 || waitSeconds > maxWaitTimeSeconds {
		return nil, errors.Errorf("waitSeconds should be >= 0 and <= %d", maxWaitTimeSeconds)
	}

	url, err := client.GetQueueUrlWithContext(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(queueName),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == sqs.ErrCodeQueueDoesNotExist {
			return nil, errors.Errorf("unable to find queue %q", queueName)
		}
		return nil, errors.Wrapf(err, "unable to get url of queue %q", queueName)
	}

	return &SQSSource{
		ctx:         ctx,
		client:      client,
		queueName:   queueName,
		url:         aws.StringValue(url.QueueUrl),
		waitSeconds: waitSeconds,
	}, nil
}

func (s *SQSSource) Next() (interface{}, error) {
	for {
		for len(s.buffer) > 0 {
			msg := s.buffer[0]
			s.buffer = s.buffer[1:]

			post, err := normalizer.DecodeRawPost([]byte(aws.StringValue(msg.Body)))
			if err != nil {
				Logger.Log.WithField("message_id", aws.StringValue(msg.MessageId)).
					Errorln("drop malformed message:", err)
			}
			if delErr := s.delete(msg); delErr != nil {
				return nil, delErr
			}
			if err == nil {
				return map[string]interface{}(post), nil
			}
		}

		if err := s.receive(); err != nil {
			return nil, err
		}
		if len(s.buffer) > 0 {
			s.emptyPolls = 0
			continue
		}
		s.emptyPolls++
		if s.MaxEmptyPolls > 0 && s.emptyPolls >= s.MaxEmptyPolls {
			return nil, io.EOF
		}
	}
}

func (s *SQSSource) receive() error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	result, err := s.client.ReceiveMessageWithContext(s.ctx, &sqs.ReceiveMessageInput{
		QueueUrl: aws.String(s.url),
		AttributeNames: aws.StringSlice([]string{
			"SentTimestamp",
			"ApproximateReceiveCount",
		}),
		MaxNumberOfMessages: aws.Int64(maxMessagesPerReceive),
		WaitTimeSeconds:     aws.Int64(s.waitSeconds),
	})
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("unable to read queue %q", s.queueName))
	}
	Logger.Log.Debugf("received %d messages from queue %s", len(result.Messages), s.queueName)

	for _, msg := range result.Messages {
		if val, ok := msg.Attributes["ApproximateReceiveCount"]; ok {
			if count, _ := strconv.Atoi(aws.StringValue(val)); count > 1 {
				Logger.Log.WithField("message_id", aws.StringValue(msg.MessageId)).
					Warnf("message delivered %d times", count)
			}
		}
	}
	s.buffer = append(s.buffer, result.Messages...)
	return nil
}

func (s *SQSSource) delete(msg *sqs.Message) error {
	_, err := s.client.DeleteMessageWithContext(s.ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.url),
		ReceiptHandle: msg.ReceiptHandle,
	})
	return errors.Wrapf(err, "fail to delete message %s", aws.StringValue(msg.MessageId))
}

package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"blog-cms/config"
	"blog-cms/logging"
	"blog-cms/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubViews struct{}

func (stubViews) Execute(w io.Writer, name string, data any) error {
	msg := data.(Message)
	_, err := fmt.Fprintf(w, "<p>%s</p>\n<a href=%q>read</a>", msg.Heading, msg.URL)
	return err
}

type sentMail struct {
	addr string
	from string
	to   []string
	body string
}

type fakeMailer struct {
	mu       sync.Mutex
	failures int
	sent     []sentMail
	calls    int
}

func (m *fakeMailer) send(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return errors.New("451 try again later")
	}
	m.sent = append(m.sent, sentMail{addr: addr, from: from, to: to, body: string(msg)})
	return nil
}

func testNotifyConfig() config.NotifyConfig {
	return config.NotifyConfig{
		Driver:  DriverSMTP,
		Workers: 2,
		Buffer:  10,
		SMTP: config.SMTPConfig{
			Host:        "mail.test",
			Port:        2525,
			FromAddress: "blog@example.com",
			FromName:    "Blog",
		},
	}
}

func testMessage(to string) Message {
	published := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	article := &models.Article{ID: 7, Heading: "Hello Go", PublishedAt: &published}
	return NewArticleMessage("https://blog.test", models.User{Name: "Reader", Email: to}, article, "Ada")
}

func TestNewArticleMessage(t *testing.T) {
	msg := testMessage("reader@example.com")

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, EventArticlePublished, msg.Event)
	assert.Equal(t, "reader@example.com", msg.ToAddress)
	assert.Equal(t, "https://blog.test/articles/7/hello-go", msg.URL)
	assert.Equal(t, "Ada", msg.AuthorName)
	assert.Equal(t, 2024, msg.PublishedAt.Year())
	assert.NotEqual(t, msg.ID, testMessage("reader@example.com").ID)
}

func TestNew(t *testing.T) {
	d, err := New(context.Background(), config.NotifyConfig{Driver: ""}, stubViews{})
	require.NoError(t, err)
	assert.Equal(t, DriverLog, d.Name())

	_, err = New(context.Background(), config.NotifyConfig{Driver: "pigeon"}, stubViews{})
	assert.ErrorContains(t, err, "pigeon")
}

func TestLogDispatcher(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)

	d := NewLogDispatcher()
	require.NoError(t, d.Dispatch(context.Background(), testMessage("reader@example.com")))
	require.NoError(t, d.Close())

	assert.Contains(t, buf.String(), "reader@example.com")
	assert.Contains(t, buf.String(), "article notification")
}

func TestSMTPDispatcher_DeliversQueuedMessages(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewSMTPDispatcher(testNotifyConfig(), stubViews{}, mailer.send)

	require.NoError(t, d.Dispatch(context.Background(), testMessage("a@example.com")))
	require.NoError(t, d.Dispatch(context.Background(), testMessage("b@example.com")))
	require.NoError(t, d.Close())

	require.Len(t, mailer.sent, 2)
	var recipients []string
	for _, m := range mailer.sent {
		assert.Equal(t, "mail.test:2525", m.addr)
		assert.Equal(t, "blog@example.com", m.from)
		assert.Contains(t, m.body, "Subject: New article: Hello Go")
		assert.Contains(t, m.body, "\"Blog\" <blog@example.com>")
		recipients = append(recipients, m.to...)
	}
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, recipients)
}

func TestSMTPDispatcher_RetriesWithBackoff(t *testing.T) {
	mailer := &fakeMailer{failures: 2}
	cfg := testNotifyConfig()
	cfg.Workers = 1
	d := NewSMTPDispatcher(cfg, stubViews{}, mailer.send)
	d.Backoff.Min = time.Millisecond
	d.Backoff.Max = 5 * time.Millisecond

	require.NoError(t, d.Dispatch(context.Background(), testMessage("a@example.com")))
	require.NoError(t, d.Close())

	assert.Equal(t, 3, mailer.calls)
	assert.Len(t, mailer.sent, 1)
}

func TestSMTPDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)

	mailer := &fakeMailer{failures: 10}
	cfg := testNotifyConfig()
	cfg.Workers = 1
	d := NewSMTPDispatcher(cfg, stubViews{}, mailer.send)
	d.MaxAttempts = 2
	d.Backoff.Min = time.Millisecond
	d.Backoff.Max = time.Millisecond

	require.NoError(t, d.Dispatch(context.Background(), testMessage("a@example.com")))
	require.NoError(t, d.Close())

	assert.Equal(t, 2, mailer.calls)
	assert.Empty(t, mailer.sent)
	assert.Contains(t, buf.String(), "failed to deliver article notification")
}

func TestSMTPDispatcher_QueueFullAndClosed(t *testing.T) {
	block := make(chan struct{})
	send := func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		<-block
		return nil
	}
	cfg := testNotifyConfig()
	cfg.Workers = 1
	cfg.Buffer = 1
	d := NewSMTPDispatcher(cfg, stubViews{}, send)

	// The first message occupies the worker, the second fills the buffer.
	require.NoError(t, d.Dispatch(context.Background(), testMessage("a@example.com")))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.Dispatch(context.Background(), testMessage("b@example.com")))
	assert.ErrorIs(t, d.Dispatch(context.Background(), testMessage("c@example.com")), ErrQueueFull)

	close(block)
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Dispatch(context.Background(), testMessage("d@example.com")), ErrClosed)
	assert.NoError(t, d.Close())
}

func TestMakeHeaderAddress(t *testing.T) {
	assert.Equal(t, "a@example.com", makeHeaderAddress("a@example.com", ""))
	assert.Equal(t, `"Ada \"L\"" <a@example.com>`, makeHeaderAddress("a@example.com", `Ada "L"`))
	assert.True(t, strings.HasPrefix(makeHeaderAddress("a@example.com", "Zoë"), "=?utf-8?b?"))
}

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, params)
	return &sqs.SendMessageOutput{MessageId: aws.String("sqs-1")}, nil
}

func TestSQSDispatcher(t *testing.T) {
	client := &fakeSQS{}
	d := newSQSDispatcher("https://sqs.test/queue", client)

	msg := testMessage("a@example.com")
	require.NoError(t, d.Dispatch(context.Background(), msg))
	require.Len(t, client.inputs, 1)

	input := client.inputs[0]
	assert.Equal(t, "https://sqs.test/queue", aws.ToString(input.QueueUrl))
	assert.Contains(t, aws.ToString(input.MessageBody), `"to_address":"a@example.com"`)
	assert.Contains(t, aws.ToString(input.MessageBody), msg.ID)
	assert.Equal(t, "7", aws.ToString(input.MessageAttributes["article_id"].StringValue))

	client.err = errors.New("throttled")
	assert.ErrorContains(t, d.Dispatch(context.Background(), msg), "throttled")
}

// Package notifications tells subscribers about newly published articles.
// Dispatch never waits for delivery; drivers queue or hand the message off
// and report only whether the hand-off worked.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"blog-cms/config"
	"blog-cms/models"

	"github.com/google/uuid"
)

const (
	DriverLog  = "log"
	DriverSMTP = "smtp"
	DriverSQS  = "sqs"

	EventArticlePublished = "article.published"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrClosed    = errors.New("notification dispatcher is closed")
)

type Message struct {
	ID          string    `json:"id"`
	Event       string    `json:"event"`
	ToAddress   string    `json:"to_address"`
	ToName      string    `json:"to_name"`
	ArticleID   uint      `json:"article_id"`
	Heading     string    `json:"heading"`
	AuthorName  string    `json:"author_name"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

type Dispatcher interface {
	// Name is the driver name, used as a metrics label.
	Name() string
	Dispatch(ctx context.Context, msg Message) error
	// Close stops accepting messages and waits for queued ones to finish.
	Close() error
}

// BodyRenderer renders a named email template.
type BodyRenderer interface {
	Execute(w io.Writer, name string, data any) error
}

// NewArticleMessage builds the notification for one subscriber.
func NewArticleMessage(appURL string, subscriber models.User, article *models.Article, author string) Message {
	msg := Message{
		ID:         uuid.NewString(),
		Event:      EventArticlePublished,
		ToAddress:  subscriber.Email,
		ToName:     subscriber.Name,
		ArticleID:  article.ID,
		Heading:    article.Heading,
		AuthorName: author,
		URL:        fmt.Sprintf("%s/articles/%d/%s", appURL, article.ID, article.Slug()),
	}
	if article.PublishedAt != nil {
		msg.PublishedAt = *article.PublishedAt
	}
	return msg
}

// New builds the dispatcher selected by cfg.Driver.
func New(ctx context.Context, cfg config.NotifyConfig, views BodyRenderer) (Dispatcher, error) {
	switch cfg.Driver {
	case "", DriverLog:
		return NewLogDispatcher(), nil
	case DriverSMTP:
		return NewSMTPDispatcher(cfg, views, nil), nil
	case DriverSQS:
		return NewSQSDispatcher(ctx, cfg.SQS)
	default:
		return nil, fmt.Errorf("unknown notification driver %q", cfg.Driver)
	}
}

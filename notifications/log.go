package notifications

import (
	"context"

	"blog-cms/logging"
)

// LogDispatcher only logs the message. It is the default for development.
type LogDispatcher struct{}

func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{}
}

func (d *LogDispatcher) Name() string { return DriverLog }

func (d *LogDispatcher) Dispatch(ctx context.Context, msg Message) error {
	logging.ExtractLogger(ctx).Info().
		Str("message_id", msg.ID).
		Str("to", msg.ToAddress).
		Uint("article_id", msg.ArticleID).
		Str("url", msg.URL).
		Msg("article notification")
	return nil
}

func (d *LogDispatcher) Close() error { return nil }

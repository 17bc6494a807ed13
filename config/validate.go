package config

import (
	"errors"
	"fmt"
)

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if len(c.JWT.Secret) == 0 {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.JWT.Expiration <= 0 {
		return fmt.Errorf("JWT_EXPIRATION must be positive, got %s", c.JWT.Expiration)
	}
	if c.Blog.ItemPerPage <= 0 {
		return fmt.Errorf("BLOG_ITEM_PER_PAGE must be positive, got %d", c.Blog.ItemPerPage)
	}
	if c.Blog.RelatedLimit < 0 {
		return fmt.Errorf("BLOG_RELATED_LIMIT must not be negative, got %d", c.Blog.RelatedLimit)
	}

	switch c.Notify.Driver {
	case "log", "":
	case "smtp":
		if c.Notify.SMTP.Host == "" || c.Notify.SMTP.FromAddress == "" {
			return errors.New("SMTP_HOST and SMTP_FROM_ADDRESS are required for the smtp notify driver")
		}
	case "sqs":
		if c.Notify.SQS.QueueURL == "" || c.Notify.SQS.Region == "" {
			return errors.New("NOTIFY_SQS_QUEUE_URL and NOTIFY_SQS_REGION are required for the sqs notify driver")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_DRIVER %q", c.Notify.Driver)
	}
	return nil
}

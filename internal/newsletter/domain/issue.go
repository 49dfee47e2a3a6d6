package domain

import "errors"

// Issue is a newsletter issue to be delivered to every confirmed subscriber.
type Issue struct {
	Title       string `json:"title"`
	HTMLContent string `json:"html_content"`
	TextContent string `json:"text_content"`
}

// Validate ensures the issue has everything needed for delivery.
func (i Issue) Validate() error {
	if i.Title == "" {
		return errors.New("title is required")
	}
	if i.HTMLContent == "" {
		return errors.New("html_content is required")
	}
	if i.TextContent == "" {
		return errors.New("text_content is required")
	}
	return nil
}

package services

import "errors"

// Error kinds returned by the template service. Handlers map these to HTTP
// statuses with errors.Is rather than matching on message text. The message
// literals mirror what API clients already expect on the wire.
var (
	// ErrInvalidTemplateID means the supplied id is not a well-formed ObjectID hex string.
	ErrInvalidTemplateID = errors.New("Invalid template ID")

	// ErrTemplateNotFound means the id was well-formed but no document matched.
	ErrTemplateNotFound = errors.New("Template not found")

	// ErrNoTemplates means the collection is empty (latest-template lookup).
	ErrNoTemplates = errors.New("No templates found")

	// ErrDesignHTMLRequired means a create request was missing design or html.
	ErrDesignHTMLRequired = errors.New("Design and HTML are required")
)

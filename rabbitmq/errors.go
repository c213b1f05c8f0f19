package rabbitmq

import "errors"

var (
	// ErrMissingURL возвращается, когда не указан адрес брокера.
	ErrMissingURL = errors.New("rabbitmq: url is required")
	// ErrClosed возвращается при попытке использовать закрытый клиент.
	ErrClosed = errors.New("rabbitmq: client is closed")
)

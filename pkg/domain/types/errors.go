package types

import "github.com/m-mizutani/goerr/v2"

// Error tags used to classify failures across layers. The HTTP controller
// maps them to response status codes.
var (
	ErrTagAuth         = goerr.NewTag("auth")
	ErrTagValidation   = goerr.NewTag("validation")
	ErrTagHost         = goerr.NewTag("host")
	ErrTagGeneration   = goerr.NewTag("generation")
	ErrTagPublish      = goerr.NewTag("publish")
	ErrTagNotification = goerr.NewTag("notification")
)

package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Identity and ledger errors
	ErrUnauthorized   = fmt.Errorf("not signed in")
	ErrQuotaExhausted = fmt.Errorf("no AI tokens left")
	ErrUserExists     = fmt.Errorf("user already exists")
	ErrUserNotFound   = fmt.Errorf("user not found")
	ErrNotAuthor      = fmt.Errorf("account is not an author")
	ErrTimeout        = fmt.Errorf("operation timed out")

	// Gateway and playback errors
	ErrGateway            = fmt.Errorf("translation gateway failed")
	ErrInvalidResponse    = fmt.Errorf("gateway response did not match schema")
	ErrPlayback           = fmt.Errorf("speech playback failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Reading session errors
	ErrPageOutOfRange = fmt.Errorf("page out of range")
	ErrPageNotCurrent = fmt.Errorf("page is not the current page")
	ErrNoPlaylist     = fmt.Errorf("no narration playlist")
	ErrSessionClosed  = fmt.Errorf("reading session closed")

	// Catalog errors
	ErrMangaNotFound   = fmt.Errorf("manga not found")
	ErrChapterNotFound = fmt.Errorf("chapter not found")
	ErrScriptNotFound  = fmt.Errorf("narration script not found")
	ErrProjectNotFound = fmt.Errorf("project not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

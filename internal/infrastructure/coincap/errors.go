package coincap

import "fmt"

// AuthError is a 403 from the provider. It means the configured API key is
// rejected, which is a configuration problem rather than a transient fault.
type AuthError struct {
	Body string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("coincap: invalid api key (403 forbidden): %s", e.Body)
}

// ClientError is any 4xx other than 403. The lookup itself is bad (unknown
// asset id, malformed request); retrying in the same cycle is pointless.
type ClientError struct {
	Status int
	Body   string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("coincap: client error %d: %s", e.Status, e.Body)
}

// ServerError is a 5xx from the provider. Transient; the next scheduled cycle
// retries naturally.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("coincap: server error %d: %s", e.Status, e.Body)
}

// TransportError covers network failures and timeouts before a status code
// was received.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("coincap: transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

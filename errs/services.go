package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Connector & Upstream Platform Errors
var (
	ErrUpstreamConnector = errors.New("upstream connector failed")
	ErrMalformedRecord   = errors.New("malformed record")
	ErrUnknownConnector  = errors.New("unknown connector")
)

// NewUpstreamConnectorError wraps a failure of an external platform while retrieving one record.
func NewUpstreamConnectorError(platform, identifier string, cause error) *ApiErr {
	status := http.StatusBadGateway
	if errors.Is(cause, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	return &ApiErr{
		StatusCode: status,
		err:        ErrUpstreamConnector,
		Details:    fmt.Sprintf("platform %s failed to supply record %s", platform, identifier),
		Cause:      cause,
	}
}

// NewMalformedRecordError reports a connector record that cannot be mapped to a create shape.
func NewMalformedRecordError(platform, identifier string, cause error) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusBadGateway,
		err:        fmt.Errorf("%w: %w", ErrUpstreamConnector, ErrMalformedRecord),
		Details:    fmt.Sprintf("platform %s supplied a malformed record %s", platform, identifier),
		Cause:      cause,
	}
}

func NewUnknownConnectorError(platform, resource string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusNotFound,
		err:        fmt.Errorf("%w: %w", ErrUnknownConnector, ErrNotFound),
		Details:    fmt.Sprintf("no connector for %s on platform %s", resource, platform),
	}
}

func IsUpstreamConnectorError(err error) bool {
	return errors.Is(err, ErrUpstreamConnector)
}

func IsMalformedRecordError(err error) bool {
	return errors.Is(err, ErrMalformedRecord)
}

package errors

import (
	"errors"
	"fmt"
)

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	RequestEndpoint string `json:"request_endpoint,omitempty"`
	RequestStatus   int    `json:"request_status,omitempty"`
	RequestBody     string `json:"request_body,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	if failure, ok := RequestFailureFrom(err); ok {
		d.RequestEndpoint = failure.Endpoint
		d.RequestStatus = failure.Status
		d.RequestBody = failure.Body
	}

	return d
}

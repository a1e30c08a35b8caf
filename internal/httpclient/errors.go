package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ErrorBody is the {"error":{code,message}} envelope our services answer with.
type ErrorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ReadError consumes and closes a non-2xx response and describes it.
func ReadError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", service, resp.StatusCode, err)
	}

	var eb ErrorBody
	if json.Unmarshal(body, &eb) == nil && eb.Error != nil {
		return fmt.Errorf("%s returned status %d (%s): %s", service, resp.StatusCode, eb.Error.Code, eb.Error.Message)
	}
	return fmt.Errorf("%s returned status %d: %s", service, resp.StatusCode, string(body))
}

func IsClientError(status int) bool {
	return status >= 400 && status < 500
}

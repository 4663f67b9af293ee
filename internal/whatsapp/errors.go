package whatsapp

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	twilioclient "github.com/twilio/twilio-go/client"
)

// Gateway business error codes that callers branch on.
const (
	CodeNotOptedIn      = 63015
	CodeRateLimited     = 63016
	CodeInvalidTemplate = 63007
	CodeSessionExpired  = 63058
)

type knownCode struct {
	status  int
	message string
}

var knownCodes = map[int]knownCode{
	CodeNotOptedIn:      {http.StatusBadRequest, "Número não autorizado"},
	CodeRateLimited:     {http.StatusTooManyRequests, "Limite de taxa excedido"},
	CodeInvalidTemplate: {http.StatusBadRequest, "Modelo de mensagem inválido"},
	CodeSessionExpired:  {http.StatusBadRequest, "Destinatário não autorizado"},
}

// Error is a send failure classified once at the gateway boundary.
// Code is the gateway error code (0 when the failure never reached the
// gateway) and Status the HTTP-equivalent status.
type Error struct {
	Code    int
	Status  int
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("whatsapp error %d (status %d): %s", e.Code, e.Status, e.Message)
	}
	if e.Status != 0 {
		return fmt.Sprintf("whatsapp error (status %d): %s", e.Status, e.Message)
	}
	return "whatsapp error: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// CodeString is the gateway code as text, or "" when there is none.
func (e *Error) CodeString() string {
	if e.Code == 0 {
		return ""
	}
	return strconv.Itoa(e.Code)
}

// Classify turns any error returned by the Twilio SDK into an *Error.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var gw *Error
	if errors.As(err, &gw) {
		return gw
	}
	var rest *twilioclient.TwilioRestError
	if errors.As(err, &rest) {
		e := &Error{Code: rest.Code, Status: rest.Status, Message: rest.Message, Detail: rest.MoreInfo, Err: err}
		if k, ok := knownCodes[rest.Code]; ok {
			e.Status = k.status
			e.Detail = rest.Message
			e.Message = k.message
		}
		return e
	}
	return &Error{Message: err.Error(), Err: err}
}

var criticalStatuses = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var criticalFragments = []string{
	"econnrefused",
	"connection refused",
	"etimedout",
	"timed out",
	"timeout",
	"deadline exceeded",
	"enotfound",
	"no such host",
	"service unavailable",
	"internal server error",
}

// IsCritical reports whether err is an infrastructure failure that should be
// escalated to an operator. Documented business codes are never critical.
func IsCritical(err error) bool {
	if err == nil {
		return false
	}
	var gw *Error
	if errors.As(err, &gw) {
		if _, ok := knownCodes[gw.Code]; ok {
			return false
		}
		if criticalStatuses[gw.Status] {
			return true
		}
		if strings.HasPrefix(gw.CodeString(), "5") {
			return true
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, f := range criticalFragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}

package httpapi

import (
	"errors"
	"net/http"

	"github.com/xraph/accredit"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusFor maps an engine error to a response status.
func statusFor(err error) int {
	if errors.Is(err, accredit.ErrInsufficientCredits) {
		return http.StatusPaymentRequired
	}

	switch accredit.KindOf(err) {
	case accredit.KindValidation:
		return http.StatusBadRequest
	case accredit.KindNotFound:
		return http.StatusNotFound
	case accredit.KindPrecondition:
		return http.StatusConflict
	case accredit.KindTransient:
		return http.StatusServiceUnavailable
	case accredit.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) error(w http.ResponseWriter, r *http.Request, err error) {
	a.errorStatus(w, r, statusFor(err), err)
}

func (a *API) errorStatus(w http.ResponseWriter, r *http.Request, code int, err error) {
	if code >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", code,
			"error", err,
		)
	}

	var body errorBody
	body.Error.Code = string(accredit.KindOf(err))
	body.Error.Message = err.Error()
	a.json(w, code, body)
}

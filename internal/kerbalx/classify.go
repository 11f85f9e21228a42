package kerbalx

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/five82/kxapi/internal/session"
)

// Outcome names how a finished call was classified.
type Outcome string

const (
	OutcomeDelivered        Outcome = "delivered"
	OutcomeServerError      Outcome = "server_error"
	OutcomeUpgradeRequired  Outcome = "upgrade_required"
	OutcomeUnauthorized     Outcome = "unauthorized"
	OutcomeUnknownStatus    Outcome = "unknown_status"
	OutcomeConnectionFailed Outcome = "connection_failed"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeRejected         Outcome = "rejected"
)

const (
	serverErrorTitle   = "KerbalX server error!!\n"
	serverErrorDefault = "An error has occurred on KerbalX (it was probably Jebs fault)"
	authFailedMessage  = "Authorization Failed\nKerbalX did not recognize your authorization token, perhaps you were logged out."
	unknownErrorTitle  = "Unknown Error!!\n"
)

type classification struct {
	outcome    Outcome
	sessionErr session.Error
	deliver    bool
	logout     bool
}

// classify maps a response onto its session side effects. The first
// matching rule wins.
func classify(status int, body string, showAuthErrors bool) classification {
	switch status {
	case http.StatusInternalServerError:
		msg := serverErrorTitle + serverErrorDefault
		if detail := jsonString(body, "error"); detail != "" {
			msg = serverErrorTitle + detail
		}
		return classification{
			outcome:    OutcomeServerError,
			sessionErr: session.ServerError(msg),
			deliver:    true,
		}
	case http.StatusUpgradeRequired:
		return classification{
			outcome:    OutcomeUpgradeRequired,
			sessionErr: session.UpgradeRequired(jsonString(body, "upgrade_message")),
		}
	case http.StatusUnauthorized:
		if !showAuthErrors {
			return classification{outcome: OutcomeDelivered, deliver: true}
		}
		return classification{
			outcome:    OutcomeUnauthorized,
			sessionErr: session.ServerError(authFailedMessage),
			logout:     true,
		}
	case http.StatusOK, http.StatusBadRequest, http.StatusUnprocessableEntity:
		return classification{outcome: OutcomeDelivered, deliver: true}
	default:
		return classification{
			outcome:    OutcomeUnknownStatus,
			sessionErr: session.ServerError(unknownErrorTitle + body),
			deliver:    true,
		}
	}
}

// jsonString extracts a top-level string field. Bodies that are not JSON
// objects, and fields of other types, yield "".
func jsonString(body, field string) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return ""
	}
	raw, ok := payload[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

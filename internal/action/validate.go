package action

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pveiga-dev/ai-employee/pkg/models"
)

var emailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate checks that a parsed request is safe to execute. It returns the
// full list of problems; an empty list means valid. Expiry is deliberately
// NOT a validation failure: expired requests execute with a warning.
func Validate(req *models.Request) []string {
	var errs []string

	if _, known := models.ParseActionType(string(req.ActionType)); !known {
		errs = append(errs, fmt.Sprintf("unsupported action type: %q", req.ActionType))
		return errs
	}

	for _, field := range req.ActionType.RequiredParams() {
		if strings.TrimSpace(req.Payload.Param(field)) == "" {
			errs = append(errs, fmt.Sprintf("missing required param: %q", field))
		}
	}

	if req.ActionType == models.ActionSendEmail || req.ActionType == models.ActionDraftEmail {
		if to := req.Payload.Param("to"); to != "" && !emailRE.MatchString(to) {
			errs = append(errs, fmt.Sprintf("invalid email address: %q", to))
		}
		if strings.TrimSpace(req.Payload.Param("body")) == "" {
			errs = append(errs, "email body cannot be empty")
		}
	}

	return errs
}

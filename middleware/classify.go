package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mcpkit/mcpkit/protocol"
)

// Classification is the fixed taxonomy an arbitrary error maps into. The
// taxonomy value selects the protocol error code, severity, and debug-info
// eligibility through one lookup table.
type Classification string

const (
	ClassRPCError          Classification = "RPC_ERROR"
	ClassMiddlewareError   Classification = "MIDDLEWARE_ERROR"
	ClassMiddlewareTimeout Classification = "MIDDLEWARE_TIMEOUT"
	ClassReentrantCall     Classification = "REENTRANT_CALL"
	ClassValidation        Classification = "VALIDATION_ERROR"
	ClassAuthentication    Classification = "AUTHENTICATION_ERROR"
	ClassAuthorization     Classification = "AUTHORIZATION_ERROR"
	ClassTimeout           Classification = "TIMEOUT_ERROR"
	ClassNetwork           Classification = "NETWORK_ERROR"
	ClassParse             Classification = "PARSE_ERROR"
	ClassRateLimit         Classification = "RATE_LIMIT_ERROR"
	ClassStandard          Classification = "STANDARD_ERROR"
	ClassUnknown           Classification = "UNKNOWN_ERROR"
)

// Severity grades how alarming a classified error is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// errorMapping is one row of the classification policy.
type errorMapping struct {
	Code          int
	Severity      Severity
	DebugEligible bool
}

// classificationTable centralizes the classification → protocol mapping.
var classificationTable = map[Classification]errorMapping{
	ClassMiddlewareError:   {protocol.CodeInternalError, SeverityHigh, true},
	ClassMiddlewareTimeout: {protocol.CodeInternalError, SeverityHigh, true},
	ClassReentrantCall:     {protocol.CodeInternalError, SeverityCritical, true},
	ClassValidation:        {protocol.CodeInvalidParams, SeverityMedium, true},
	ClassAuthentication:    {protocol.CodeUnauthorized, SeverityMedium, true},
	ClassAuthorization:     {protocol.CodeUnauthorized, SeverityMedium, true},
	ClassTimeout:           {protocol.CodeTimeout, SeverityMedium, true},
	ClassNetwork:           {protocol.CodeNetwork, SeverityMedium, true},
	ClassParse:             {protocol.CodeParseError, SeverityHigh, true},
	ClassRateLimit:         {protocol.CodeRateLimited, SeverityMedium, true},
	ClassStandard:          {protocol.CodeInternalError, SeverityLow, true},
	ClassUnknown:           {protocol.CodeInternalError, SeverityLow, true},
}

// classified is the result of running an error through the taxonomy.
type classified struct {
	Class           Classification
	RPC             *protocol.Error
	MiddlewareIndex *int
	ExecutionID     string
	OriginalType    string
	OriginalMessage string
}

// mapping returns the policy row for the classification. RPC errors keep
// their own code and derive severity from its range.
func (c classified) mapping() errorMapping {
	if c.Class == ClassRPCError {
		return errorMapping{
			Code:          c.RPC.Code,
			Severity:      rpcSeverity(c.RPC.Code),
			DebugEligible: false,
		}
	}
	return classificationTable[c.Class]
}

// rpcSeverity derives a severity from a JSON-RPC error code range.
func rpcSeverity(code int) Severity {
	switch {
	case code == protocol.CodeParseError || code == protocol.CodeInternalError:
		return SeverityHigh
	case protocol.IsServerError(code):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// classify maps an arbitrary error into the taxonomy. Engine-control errors
// carry their kind from the throw site; protocol errors pass through; plain
// errors fall back to a substring scan of the type name and message.
func classify(err error) classified {
	if err == nil {
		return classified{Class: ClassUnknown, OriginalType: "nil"}
	}

	var pv *panicValueError
	if errors.As(err, &pv) {
		return classified{
			Class:           ClassUnknown,
			OriginalType:    fmt.Sprintf("%T", pv.value),
			OriginalMessage: pv.Error(),
		}
	}

	var rpcErr *protocol.Error
	if errors.As(err, &rpcErr) {
		return classified{
			Class:           ClassRPCError,
			RPC:             rpcErr,
			OriginalType:    fmt.Sprintf("%T", rpcErr),
			OriginalMessage: rpcErr.Message,
		}
	}

	var mwErr *MiddlewareError
	if errors.As(err, &mwErr) {
		idx := mwErr.Index
		return classified{
			Class:           ClassMiddlewareError,
			MiddlewareIndex: &idx,
			OriginalType:    fmt.Sprintf("%T", mwErr),
			OriginalMessage: mwErr.Error(),
		}
	}

	var toErr *TimeoutError
	if errors.As(err, &toErr) {
		idx := toErr.Index
		return classified{
			Class:           ClassMiddlewareTimeout,
			MiddlewareIndex: &idx,
			OriginalType:    fmt.Sprintf("%T", toErr),
			OriginalMessage: toErr.Error(),
		}
	}

	var reErr *ReentrantCallError
	if errors.As(err, &reErr) {
		idx := reErr.Index
		return classified{
			Class:           ClassReentrantCall,
			MiddlewareIndex: &idx,
			ExecutionID:     reErr.ExecutionID,
			OriginalType:    fmt.Sprintf("%T", reErr),
			OriginalMessage: reErr.Error(),
		}
	}

	return classified{
		Class:           heuristicClass(err),
		OriginalType:    fmt.Sprintf("%T", err),
		OriginalMessage: err.Error(),
	}
}

// heuristicClass scans the error's type name and message for telltale
// substrings. First match wins, in a fixed precedence order.
func heuristicClass(err error) Classification {
	scan := strings.ToLower(fmt.Sprintf("%T %s", err, err.Error()))

	switch {
	case strings.Contains(scan, "validation"):
		return ClassValidation
	case strings.Contains(scan, "auth") || strings.Contains(scan, "unauthorized"):
		return ClassAuthentication
	case strings.Contains(scan, "permission") || strings.Contains(scan, "forbidden"):
		return ClassAuthorization
	case strings.Contains(scan, "timeout"):
		return ClassTimeout
	case strings.Contains(scan, "network") || strings.Contains(scan, "connection"):
		return ClassNetwork
	case strings.Contains(scan, "parse") || strings.Contains(scan, "syntax"):
		return ClassParse
	case strings.Contains(scan, "rate") || strings.Contains(scan, "too many"):
		return ClassRateLimit
	default:
		return ClassStandard
	}
}

// panicValueError adapts a recovered non-error panic value. It classifies
// as UNKNOWN_ERROR.
type panicValueError struct {
	value any
}

func (p *panicValueError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

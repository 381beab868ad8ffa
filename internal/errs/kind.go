package errs

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// Kind is one (layer, condition) pair of the taxonomy.
type Kind uint16

// Kinds, grouped by layer. Append new kinds with new sequence numbers; never reuse one.
const (
	KindUnknown Kind = iota

	// Infrastructure.
	KindDatabaseConnection
	KindDatabaseQuery
	KindTokenExpired
	KindTokenInvalid
	KindTokenIssue
	KindOperationTimeout
	KindCacheUnavailable
	KindMigration

	// Repository.
	KindVersionConflict
	KindEntityNotFound
	KindMissingIdentifier
	KindDuplicateEntity

	// Domain.
	KindInvalidEntity

	// Service.
	KindUserAlreadyExists
	KindInvalidCredentials
	KindRetryRequest
	KindUserNotFound
	KindAccountInactive
	KindTooManyAttempts
	KindPasswordHashing

	// Controller.
	KindInvalidRequest
	KindAuthenticationRequired
	KindInvalidEmail
	KindWeakPassword

	// Presentation.
	KindInternal
	KindRouteNotFound
	KindMethodNotAllowed
)

type kindInfo struct {
	name    string
	code    ErrorCode
	message string
	format  string // used when arguments are supplied
}

var kinds = map[Kind]kindInfo{
	KindDatabaseConnection: {
		name:    "DatabaseConnection",
		code:    MustCode(http.StatusServiceUnavailable, SeverityCritical, LayerInfrastructure, 1),
		message: "Failed to connect to database",
	},
	KindDatabaseQuery: {
		name:    "DatabaseQuery",
		code:    MustCode(http.StatusInternalServerError, SeverityCritical, LayerInfrastructure, 2),
		message: "Failed to execute database query",
	},
	KindTokenExpired: {
		name:    "TokenExpired",
		code:    MustCode(http.StatusUnauthorized, SeverityExpected, LayerInfrastructure, 3),
		message: "Authentication token has expired",
	},
	KindTokenInvalid: {
		name:    "TokenInvalid",
		code:    MustCode(http.StatusUnauthorized, SeverityHigh, LayerInfrastructure, 4),
		message: "Invalid authentication token",
	},
	KindTokenIssue: {
		name:    "TokenIssue",
		code:    MustCode(http.StatusInternalServerError, SeverityHigh, LayerInfrastructure, 5),
		message: "Failed to issue authentication token",
	},
	KindOperationTimeout: {
		name:    "OperationTimeout",
		code:    MustCode(http.StatusGatewayTimeout, SeverityMedium, LayerInfrastructure, 6),
		message: "Operation was cancelled or timed out",
	},
	KindCacheUnavailable: {
		name:    "CacheUnavailable",
		code:    MustCode(http.StatusServiceUnavailable, SeverityHigh, LayerInfrastructure, 7),
		message: "Failed to reach cache",
	},
	KindMigration: {
		name:    "Migration",
		code:    MustCode(http.StatusInternalServerError, SeverityCritical, LayerInfrastructure, 8),
		message: "Failed to prepare database migrations",
	},

	KindVersionConflict: {
		name:    "VersionConflict",
		code:    MustCode(http.StatusConflict, SeverityHigh, LayerRepository, 1),
		message: "Concurrent modification detected",
		format:  "Concurrent modification detected for %s %s",
	},
	KindEntityNotFound: {
		name:    "EntityNotFound",
		code:    MustCode(http.StatusNotFound, SeverityMedium, LayerRepository, 2),
		message: "Entity not found",
		format:  "%s %s not found",
	},
	KindMissingIdentifier: {
		name:    "MissingIdentifier",
		code:    MustCode(http.StatusBadRequest, SeverityLow, LayerRepository, 3),
		message: "Entity identifier is required",
		format:  "%s identifier is required",
	},
	KindDuplicateEntity: {
		name:    "DuplicateEntity",
		code:    MustCode(http.StatusConflict, SeverityExpected, LayerRepository, 4),
		message: "Entity already exists",
		format:  "%s already exists",
	},

	KindInvalidEntity: {
		name:    "InvalidEntity",
		code:    MustCode(http.StatusUnprocessableEntity, SeverityLow, LayerDomain, 1),
		message: "Invalid entity",
		format:  "invalid %s: %s",
	},

	KindUserAlreadyExists: {
		name:    "UserAlreadyExists",
		code:    MustCode(http.StatusConflict, SeverityExpected, LayerService, 1),
		message: "User already exists",
		format:  "User with email %s already exists",
	},
	KindInvalidCredentials: {
		name:    "InvalidCredentials",
		code:    MustCode(http.StatusUnauthorized, SeverityExpected, LayerService, 2),
		message: "Invalid email or password",
	},
	KindRetryRequest: {
		name:    "RetryRequest",
		code:    MustCode(http.StatusConflict, SeverityExpected, LayerService, 3),
		message: "The resource was modified by another request, please retry",
	},
	KindUserNotFound: {
		name:    "UserNotFound",
		code:    MustCode(http.StatusNotFound, SeverityExpected, LayerService, 4),
		message: "User not found",
	},
	KindAccountInactive: {
		name:    "AccountInactive",
		code:    MustCode(http.StatusForbidden, SeverityMedium, LayerService, 5),
		message: "Account is inactive",
	},
	KindTooManyAttempts: {
		name:    "TooManyAttempts",
		code:    MustCode(http.StatusTooManyRequests, SeverityMedium, LayerService, 6),
		message: "Too many failed login attempts, try again later",
	},
	KindPasswordHashing: {
		name:    "PasswordHashing",
		code:    MustCode(http.StatusInternalServerError, SeverityCritical, LayerService, 7),
		message: "Failed to hash password",
	},

	KindInvalidRequest: {
		name:    "InvalidRequest",
		code:    MustCode(http.StatusBadRequest, SeverityLow, LayerController, 1),
		message: "Invalid request",
		format:  "Invalid request: %s",
	},
	KindAuthenticationRequired: {
		name:    "AuthenticationRequired",
		code:    MustCode(http.StatusUnauthorized, SeverityExpected, LayerController, 2),
		message: "Authentication required",
	},
	KindInvalidEmail: {
		name:    "InvalidEmail",
		code:    MustCode(http.StatusUnprocessableEntity, SeverityLow, LayerController, 3),
		message: "Invalid email format",
		format:  "%s",
	},
	KindWeakPassword: {
		name:    "WeakPassword",
		code:    MustCode(http.StatusUnprocessableEntity, SeverityLow, LayerController, 4),
		message: "Password does not meet complexity requirements",
		format:  "%s",
	},

	KindInternal: {
		name:    "Internal",
		code:    MustCode(http.StatusInternalServerError, SeverityCritical, LayerPresentation, 1),
		message: "Internal server error",
	},
	KindRouteNotFound: {
		name:    "RouteNotFound",
		code:    MustCode(http.StatusNotFound, SeverityLow, LayerPresentation, 2),
		message: "Route not found",
	},
	KindMethodNotAllowed: {
		name:    "MethodNotAllowed",
		code:    MustCode(http.StatusMethodNotAllowed, SeverityLow, LayerPresentation, 3),
		message: "Method not allowed",
	},
}

var kindsByCode map[string]Kind

func init() {
	type slot struct {
		layer Layer
		seq   int
	}
	slots := make(map[slot]Kind, len(kinds))
	kindsByCode = make(map[string]Kind, len(kinds))
	for k, s := range kinds {
		key := slot{s.code.Layer(), s.code.Sequence()}
		if other, dup := slots[key]; dup {
			panic(fmt.Sprintf("errs: %s and %s share layer %s sequence %d", k, other, key.layer, key.seq))
		}
		slots[key] = k
		rendered := s.code.String()
		if other, dup := kindsByCode[rendered]; dup {
			panic(fmt.Sprintf("errs: %s and %s render the same code %s", k, other, rendered))
		}
		kindsByCode[rendered] = k
	}
}

// Kinds returns every registered kind ordered by rendered code.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	slices.SortFunc(out, func(a, b Kind) int {
		return strings.Compare(a.Code().String(), b.Code().String())
	})
	return out
}

// LookupCode resolves a rendered code back to its kind.
func LookupCode(code string) (Kind, bool) {
	k, ok := kindsByCode[code]
	return k, ok
}

func (k Kind) info() kindInfo {
	if s, ok := kinds[k]; ok {
		return s
	}
	return kinds[KindInternal]
}

// Code returns the kind's error code. Unregistered kinds report the internal error code.
func (k Kind) Code() ErrorCode { return k.info().code }

// Message returns the default message of the kind.
func (k Kind) Message() string { return k.info().message }

func (k Kind) String() string {
	if s, ok := kinds[k]; ok {
		return s.name
	}
	return fmt.Sprintf("Kind(%d)", uint16(k))
}

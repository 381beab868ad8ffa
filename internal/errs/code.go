// Package errs contains the error taxonomy shared by every layer of the service.
//
// Each failure is one statically enumerated Kind. A Kind is bound to an ErrorCode made of
// four parts (HTTP status, severity, layer, sequence) that renders into a stable string such
// as "4091002001". Codes are an external contract: they are never renumbered or reused.
package errs

import (
	"fmt"
	"net/http"
)

// Severity classifies how bad a failure is.
type Severity uint8

// Severity levels.
const (
	SeverityCritical Severity = iota + 1 // system cannot function
	SeverityHigh                         // security or integrity relevant
	SeverityMedium                       // business rule violation
	SeverityLow                          // recoverable validation problem
	SeverityExpected                     // normal control flow
)

var severityCodes = map[Severity]string{
	SeverityCritical: "00",
	SeverityHigh:     "10",
	SeverityMedium:   "20",
	SeverityLow:      "30",
	SeverityExpected: "99",
}

var severityNames = map[Severity]string{
	SeverityCritical: "CRITICAL",
	SeverityHigh:     "HIGH",
	SeverityMedium:   "MEDIUM",
	SeverityLow:      "LOW",
	SeverityExpected: "EXPECTED",
}

// Code returns the two-digit code used in rendered error codes.
func (s Severity) Code() string { return severityCodes[s] }

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Severity(%d)", uint8(s))
}

func (s Severity) valid() bool {
	_, ok := severityCodes[s]
	return ok
}

// Layer is the architectural tier a failure originates from.
type Layer uint8

// Layers.
const (
	LayerInfrastructure Layer = iota + 1
	LayerRepository
	LayerDomain
	LayerService
	LayerController
	LayerPresentation
)

var layerNames = map[Layer]string{
	LayerInfrastructure: "INFRASTRUCTURE",
	LayerRepository:     "REPOSITORY",
	LayerDomain:         "DOMAIN",
	LayerService:        "SERVICE",
	LayerController:     "CONTROLLER",
	LayerPresentation:   "PRESENTATION",
}

// Code returns the two-digit code used in rendered error codes.
func (l Layer) Code() string { return fmt.Sprintf("%02d", uint8(l)) }

func (l Layer) String() string {
	if n, ok := layerNames[l]; ok {
		return n
	}
	return fmt.Sprintf("Layer(%d)", uint8(l))
}

func (l Layer) valid() bool {
	_, ok := layerNames[l]
	return ok
}

// MaxSequence is the largest sequence number representable in three digits.
const MaxSequence = 999

// ErrorCode is the four-part classification of an error kind.
type ErrorCode struct {
	httpStatus int
	severity   Severity
	layer      Layer
	sequence   int
}

// NewCode validates the classification and builds an ErrorCode.
func NewCode(httpStatus int, severity Severity, layer Layer, sequence int) (ErrorCode, error) {
	if httpStatus < 100 || httpStatus > 599 || http.StatusText(httpStatus) == "" {
		return ErrorCode{}, fmt.Errorf("errs: invalid http status %d", httpStatus)
	}
	if !severity.valid() {
		return ErrorCode{}, fmt.Errorf("errs: invalid severity %d", uint8(severity))
	}
	if !layer.valid() {
		return ErrorCode{}, fmt.Errorf("errs: invalid layer %d", uint8(layer))
	}
	if sequence < 0 || sequence > MaxSequence {
		return ErrorCode{}, fmt.Errorf("errs: sequence %d out of range [0,%d]", sequence, MaxSequence)
	}
	return ErrorCode{httpStatus: httpStatus, severity: severity, layer: layer, sequence: sequence}, nil
}

// MustCode is NewCode that panics. Taxonomy entries are constants, so a bad one is a
// programming error.
func MustCode(httpStatus int, severity Severity, layer Layer, sequence int) ErrorCode {
	c, err := NewCode(httpStatus, severity, layer, sequence)
	if err != nil {
		panic(err)
	}
	return c
}

// HTTPStatus returns the HTTP status part.
func (c ErrorCode) HTTPStatus() int { return c.httpStatus }

// Severity returns the severity part.
func (c ErrorCode) Severity() Severity { return c.severity }

// Layer returns the layer part.
func (c ErrorCode) Layer() Layer { return c.layer }

// Sequence returns the sequence part.
func (c ErrorCode) Sequence() int { return c.sequence }

// String renders {status}{severity}{layer}{sequence:03}.
func (c ErrorCode) String() string {
	return fmt.Sprintf("%03d%s%s%03d", c.httpStatus, c.severity.Code(), c.layer.Code(), c.sequence)
}

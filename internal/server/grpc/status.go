package grpcserver

import (
	"encoding/json"
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/account-keeper/internal/errs"
)

// ErrorDomain is the ErrorInfo domain of account errors.
const ErrorDomain = "account"

// Code maps an error kind to a gRPC status code. Version conflicts are Aborted,
// which tells clients to re-read and retry.
func Code(ae *errs.AppError) codes.Code {
	switch ae.Kind() {
	case errs.KindVersionConflict, errs.KindRetryRequest:
		return codes.Aborted
	case errs.KindMethodNotAllowed, errs.KindRouteNotFound:
		return codes.Unimplemented
	}
	switch ae.HTTPStatus() {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return codes.InvalidArgument
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.AlreadyExists
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case http.StatusServiceUnavailable:
		return codes.Unavailable
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// Status externalizes err as a gRPC status. The message is the error message; the
// code travels as ErrorInfo.Reason and the details as a Struct.
func Status(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	ae := errs.Classify(err)
	rep := ae.External()
	st := status.New(Code(ae), rep.Message)

	info := &errdetails.ErrorInfo{Reason: rep.Code, Domain: ErrorDomain}
	details := &structpb.Struct{}
	if raw, e := json.Marshal(rep.Details); e == nil && rep.Details != nil {
		if e := protojson.Unmarshal(raw, details); e != nil {
			details = &structpb.Struct{}
		}
	}
	withDetails, e := st.WithDetails(info, details)
	if e != nil {
		return st.Err()
	}
	return withDetails.Err()
}

// FromStatus recovers the external error representation from a status returned by
// the server. ok is false for errors that did not come from an account call.
func FromStatus(err error) (errs.Representation, bool) {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return errs.Representation{}, false
	}
	rep := errs.Representation{Message: st.Message(), Details: map[string]any{}}
	found := false
	for _, d := range st.Details() {
		switch v := d.(type) {
		case *errdetails.ErrorInfo:
			if v.GetDomain() == ErrorDomain {
				rep.Code = v.GetReason()
				found = true
			}
		case *structpb.Struct:
			rep.Details = v.AsMap()
		}
	}
	return rep, found
}

// KindFromStatus resolves the error kind carried by a status.
func KindFromStatus(err error) (errs.Kind, bool) {
	rep, ok := FromStatus(err)
	if !ok {
		return errs.KindUnknown, false
	}
	return errs.LookupCode(rep.Code)
}

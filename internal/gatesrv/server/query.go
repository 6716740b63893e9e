package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/postgate/postgate/internal/common/httpx"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
	"github.com/postgate/postgate/internal/gatesrv/sqlvalidator"
)

// QueryRequest is the body of POST /query. params are bound to $1..$N by
// position.
type QueryRequest struct {
	SQL    string `json:"sql" validate:"required"`
	Params []any  `json:"params" validate:"omitempty,max=65535"`
}

// queryHandler services POST /query: validate the statement against the
// caller's policy, execute it in the tenant scope, and return the rows.
func (s *GateServer) queryHandler(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()

	policy := gatecommon.GetPolicy(ctx)
	if policy == nil {
		return nil, httpx.ErrUnAuthorized()
	}

	var req QueryRequest
	if err := decodeQueryRequest(r, &req); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(&req); err != nil {
		return nil, sqlvalidator.ErrValidation.Msg("invalid request body")
	}

	parsed, verr := sqlvalidator.ValidateQuery(req.SQL, policy.Operations)
	if verr != nil {
		return nil, verr
	}

	result, eerr := s.executor.Execute(ctx, policy, parsed, req.Params)
	if eerr != nil {
		return nil, eerr
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   result,
	}, nil
}

// decodeQueryRequest parses the body, requiring application/json and
// preserving numeric parameters as json.Number so integers bind without
// float rounding.
func decodeQueryRequest(r *http.Request, req *QueryRequest) error {
	mediaType, _, merr := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if merr != nil || mediaType != "application/json" {
		return httpx.ErrUnsupportedContentType()
	}
	if r.Body == nil {
		return httpx.ErrUnableToParseReqData()
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return httpx.ErrRequestTooLarge()
		}
		return httpx.ErrUnableToParseReqData()
	}
	return nil
}

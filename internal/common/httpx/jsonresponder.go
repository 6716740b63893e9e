package httpx

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/postgate/postgate/internal/common/logtrace"
)

var jsonapi = jsoniter.ConfigCompatibleWithStandardLibrary

// SendJsonRsp sends a JSON response with the given status code. msg may be a
// struct, a pre-marshaled JSON string, or raw JSON bytes.
func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, msg any) {
	var msgJson []byte
	switch m := msg.(type) {
	case string:
		b := []byte(m)
		if jsonapi.Valid(b) {
			msgJson = b
		}
	case []byte:
		if jsonapi.Valid(m) {
			msgJson = m
		}
	default:
		var err error
		msgJson, err = jsonapi.Marshal(msg)
		if err != nil {
			log.Ctx(ctx).Err(err).
				Str("request_id", logtrace.RequestIdFromContext(ctx)).
				Msg("unable to marshal json response")
			ErrApplicationError().Send(w)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(msgJson)
}

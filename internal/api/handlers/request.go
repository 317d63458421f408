package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/quantengine/internal/api/response"
)

const maxBodyBytes = 4 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 에러 필드명은 json 태그 기준
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// decodeJSON decodes and validates the body into dst; on failure it has
// already written the error response.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			response.BadRequest(w, r, "invalid request body: "+err.Error())
			return false
		}
	}

	if err := validate.Struct(dst); err != nil {
		response.ValidationError(w, r, err)
		return false
	}
	return true
}

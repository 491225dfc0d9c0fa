// Package validator schema-checks queue envelopes before any processing.
// Every check returns a Result instead of an error so callers can route the
// failure without inspecting error chains; validation never panics.
package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"

	"github.com/shabibmr/waba-xypr-sub001/internal/models"
	"github.com/shabibmr/waba-xypr-sub001/internal/util"
)

// MaxTextChars is the longest text body accepted from any intake queue.
const MaxTextChars = 4096

// Result is the outcome of validating a raw envelope.
type Result[T any] struct {
	Valid  bool
	Data   *T
	Reason string
}

func ok[T any](data *T) Result[T] {
	return Result[T]{Valid: true, Data: data}
}

func fail[T any](format string, args ...any) Result[T] {
	return Result[T]{Reason: fmt.Sprintf(format, args...)}
}

var validate = newValidate()

func newValidate() *playground.Validate {
	v := playground.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	mustRegister(v, "uuid4id", func(fl playground.FieldLevel) bool {
		_, err := util.ParseUUIDv4(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "waid", func(fl playground.FieldLevel) bool {
		return util.IsWaID(fl.Field().String())
	})
	mustRegister(v, "numericid", func(fl playground.FieldLevel) bool {
		return util.IsNumericID(fl.Field().String())
	})
	mustRegister(v, "httpurl", func(fl playground.FieldLevel) bool {
		_, err := util.ValidateHTTPURL(fl.Field().String())
		return err == nil
	})
	return v
}

func mustRegister(v *playground.Validate, tag string, fn playground.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validator: register %s: %v", tag, err))
	}
}

// decodeObject checks that raw is a JSON object and decodes it into dst.
func decodeObject(raw []byte, dst any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return errors.New("payload is empty")
	}
	if trimmed[0] != '{' {
		return errors.New("payload is not a JSON object")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// structReason runs the tag rules and renders the first failure.
func structReason(v any) string {
	err := validate.Struct(v)
	if err == nil {
		return ""
	}
	var verrs playground.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Tag() == "required" {
			return fmt.Sprintf("%s is required", field)
		}
		return fmt.Sprintf("%s failed %q check", field, fe.Tag())
	}
	return err.Error()
}

// payloadReason enforces the text/media invariant shared by the outbound and
// widget intakes.
func payloadReason(p models.Payload) string {
	text := strings.TrimSpace(p.Text)
	if text == "" && p.Media == nil {
		return "payload must contain text or media"
	}
	if err := util.EnsureMaxRunes("payload.text", p.Text, MaxTextChars); err != nil {
		return err.Error()
	}
	if p.Media != nil {
		if strings.TrimSpace(p.Media.URL) == "" {
			return "payload.media.url is required"
		}
		if strings.TrimSpace(p.Media.MIMEType) == "" {
			return "payload.media.mime_type is required"
		}
	}
	return ""
}

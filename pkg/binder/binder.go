package binder

import (
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
)

var unknownFieldsRE = regexp.MustCompile(`^json: unknown field "(.*)"$`)

// Binder is a custom struct that implements the Echo Binder interface. It binds
// to a struct, uses mold to clean up the params, and validator to validate
// them.
type Binder struct {
	queryDecoder *schema.Decoder
	formDecoder  *schema.Decoder
	conform      *mold.Transformer
	validate     *validator.Validate
}

// New initializes a new Binder instance with the appropriate validation
// functions registered.
func New() (*Binder, error) {
	queryDecoder := schema.NewDecoder()
	queryDecoder.SetAliasTag("query")
	formDecoder := schema.NewDecoder()
	formDecoder.SetAliasTag("form")
	conform := modifiers.New()
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("language", languageValidator)
	_ = validate.RegisterValidation("rgbcolor", colorValidator)

	return &Binder{queryDecoder, formDecoder, conform, validate}, nil
}

// maxJSONBodyBytes caps JSON payloads. Large annotation batches from the PDF
// reader stay well under it; file uploads use multipart and aren't affected.
const maxJSONBodyBytes = 8 << 20

// Bind binds, modifies, and validates payloads against the given struct.
func (b *Binder) Bind(i interface{}, c echo.Context) error {
	req := c.Request()

	disallowEmptyBody := true
	if disallow, ok := c.Get("disallow_empty_body").(bool); ok {
		disallowEmptyBody = disallow
	}

	switch {
	case req.ContentLength > 0:
		if err := b.bindBody(i, c); err != nil {
			return err
		}
	case req.Method == http.MethodGet || req.Method == http.MethodDelete:
		if err := b.decodeQuery(i, c.QueryParams(), b.queryDecoder); err != nil {
			return errors.WithStack(err)
		}
	case disallowEmptyBody:
		return errcodes.EmptyRequestBody()
	}

	if err := b.conform.Struct(req.Context(), i); err != nil {
		return errors.WithStack(err)
	}

	if err := defaults.Set(i); err != nil {
		return errors.WithStack(err)
	}

	if err := b.validate.Struct(i); err != nil {
		errs := err.(validator.ValidationErrors)
		msg := formatValidationError(errs[0])
		return errcodes.ValidationError(msg)
	}
	return nil
}

func (b *Binder) bindBody(i interface{}, c echo.Context) error {
	ctype := c.Request().Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(ctype, echo.MIMEApplicationJSON):
		return b.bindJSON(i, c)
	case strings.HasPrefix(ctype, echo.MIMEApplicationForm), strings.HasPrefix(ctype, echo.MIMEMultipartForm):
		return b.bindForm(i, c)
	default:
		return errcodes.UnsupportedMediaType()
	}
}

func (b *Binder) bindJSON(i interface{}, c echo.Context) error {
	req := c.Request()
	log := logger.FromEchoContext(c)

	body := http.MaxBytesReader(c.Response(), req.Body, maxJSONBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	disallowUnknownFields := true
	if disallow, ok := c.Get("disallow_unknown_fields").(bool); ok {
		disallowUnknownFields = disallow
	}
	if disallowUnknownFields {
		dec.DisallowUnknownFields()
	}

	err := dec.Decode(i)
	if err == nil {
		return nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errcodes.PayloadTooLarge(tooLarge.Limit)
	}

	// return better error message when there are unknown fields
	if matches := unknownFieldsRE.FindAllStringSubmatch(err.Error(), -1); len(matches) > 0 && len(matches[0]) > 1 {
		return errcodes.UnknownParameter(matches[0][1])
	}

	// return better error message on type errors
	if err, ok := err.(*json.UnmarshalTypeError); ok {
		msg := formatUnmarshalTypeError(err)
		return errcodes.ValidationTypeError(msg)
	}

	log.Err(err).Error("unknown json decode error")

	return errcodes.MalformedPayload()
}

func (b *Binder) bindForm(i interface{}, c echo.Context) error {
	params, err := c.FormParams()
	if err != nil {
		return errcodes.MalformedPayload()
	}
	if err := b.decodeQuery(i, params, b.formDecoder); err != nil {
		return errors.WithStack(err)
	}

	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(ctype, echo.MIMEMultipartForm) {
		return nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return errors.WithStack(err)
	}
	// Files go into a FormFiles map keyed by field name. Only the first file
	// of each field is kept.
	field := reflect.ValueOf(i).Elem().FieldByName("FormFiles")
	if !field.IsValid() || !field.CanSet() || len(form.File) == 0 {
		return nil
	}
	field.Set(reflect.MakeMap(field.Type()))
	for key, headers := range form.File {
		if len(headers) > 0 {
			field.SetMapIndex(reflect.ValueOf(key), reflect.ValueOf(headers[0]))
		}
	}
	return nil
}

func (b *Binder) decodeQuery(i interface{}, params url.Values, decoder *schema.Decoder) error {
	if err := decoder.Decode(i, params); err != nil {
		if errs, ok := err.(schema.MultiError); ok {
			var err error
			for _, err = range errs {
				break
			}

			if err, ok := err.(schema.ConversionError); ok {
				msg := formatSchemaConversionError(err)
				return errcodes.ValidationTypeError(msg)
			}
			if err, ok := err.(schema.UnknownKeyError); ok {
				return errcodes.UnknownParameter(err.Key)
			}

			return errors.WithStack(err)
		}
		return errors.WithStack(err)
	}
	return nil
}

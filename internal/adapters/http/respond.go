package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/ogurasousui/gallon-quota/internal/core/employee"
	"github.com/ogurasousui/gallon-quota/internal/core/validation"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// writeJSON は v を JSON で書き出します。
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeMessage は {"message": ...} を書き出します。
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

type validationBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// writeValidation は不正なフィールドごとのメッセージを 422 で返します。
func writeValidation(w http.ResponseWriter, err error) {
	fields := validation.Fields(err)
	writeJSON(w, http.StatusUnprocessableEntity, validationBody{
		Message: summarize(fields),
		Errors:  fields,
	})
}

// summarize は先頭のメッセージと残りの件数をまとめます。
func summarize(fields map[string][]string) string {
	keys := make([]string, 0, len(fields))
	total := 0
	for k, msgs := range fields {
		keys = append(keys, k)
		total += len(msgs)
	}
	if total == 0 {
		return "The given data was invalid."
	}
	sort.Strings(keys)
	first := fields[keys[0]][0]
	if rest := total - 1; rest > 0 {
		noun := "errors"
		if rest == 1 {
			noun = "error"
		}
		return fmt.Sprintf("%s (and %d more %s)", first, rest, noun)
	}
	return first
}

// writeServiceError はユースケースのエラーを HTTP ステータスへ変換します。
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case validation.IsValidation(err):
		writeValidation(w, err)
	case errors.Is(err, employee.ErrEmployeeNotFound):
		writeMessage(w, http.StatusNotFound, "Employee not found.")
	case errors.Is(err, employee.ErrInvalidID),
		errors.Is(err, employee.ErrInvalidPageSize),
		errors.Is(err, employee.ErrInvalidPageToken):
		writeMessage(w, http.StatusBadRequest, "Invalid request.")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeMessage(w, http.StatusInternalServerError, "Internal server error.")
	}
}

var errNotString = errors.New("http: value must be a string")

// decodeValues は readValues の結果を検証し、失敗時は応答を書き込んで false を返します。
func decodeValues(w http.ResponseWriter, r *http.Request, stringKeys ...string) (url.Values, bool) {
	values, err := readValues(w, r, stringKeys...)
	if err != nil {
		if validation.IsValidation(err) {
			writeValidation(w, err)
		} else {
			writeMessage(w, http.StatusBadRequest, "Malformed request body.")
		}
		return nil, false
	}
	return values, true
}

// readValues は JSON またはフォームのボディを url.Values に読み込みます。
// JSON の null は空文字として保持し、キーの有無で未送信と区別します。
// stringKeys に挙げたキーへ文字列以外の JSON 値が来た場合は FieldError を返します。
func readValues(w http.ResponseWriter, r *http.Request, stringKeys ...string) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return r.PostForm, nil
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	var errs []error
	for _, key := range stringKeys {
		switch raw[key].(type) {
		case nil, string:
		default:
			label := strings.ReplaceAll(key, "_", " ")
			errs = append(errs, validation.New(key, errNotString, fmt.Sprintf("The %s field must be a string.", label)))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	values := make(url.Values, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			values.Set(k, "")
		case string:
			values.Set(k, val)
		case json.Number:
			values.Set(k, val.String())
		case bool:
			values.Set(k, strconv.FormatBool(val))
		default:
			return nil, fmt.Errorf("field %q: unsupported value", k)
		}
	}
	return values, nil
}

// optionalString はキーが無ければ nil を返します。
func optionalString(values url.Values, key string) *string {
	if _, ok := values[key]; !ok {
		return nil
	}
	v := values.Get(key)
	return &v
}

// parseInt は整数として解釈します。キーが無いか空なら ok は false です。
func parseInt(values url.Values, key, label string, sentinel error) (n int, ok bool, err error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, false, nil
	}
	n, convErr := strconv.Atoi(raw)
	if convErr != nil {
		return 0, false, validation.New(key, sentinel, fmt.Sprintf("%s must be a whole number.", label))
	}
	return n, true, nil
}

// parseBool は true/false に加えてチェックボックスの値も受け付けます。
func parseBool(values url.Values, key string, sentinel error) (*bool, error) {
	if _, ok := values[key]; !ok {
		return nil, nil
	}
	raw := strings.ToLower(strings.TrimSpace(values.Get(key)))
	var b bool
	switch raw {
	case "1", "true", "on", "yes":
		b = true
	case "0", "false", "off", "no", "":
		b = false
	default:
		return nil, validation.New(key, sentinel, "The is active field must be true or false.")
	}
	return &b, nil
}

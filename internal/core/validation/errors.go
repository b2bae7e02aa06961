// Package validation は入力検証エラーをフィールド単位で表現します。
package validation

import (
	"errors"
	"fmt"
)

// FieldError は特定フィールドの検証エラーです。Err にはドメインの sentinel エラーを保持します。
type FieldError struct {
	Field   string
	Message string
	Err     error
}

// New は FieldError を生成します。
func New(field string, err error, message string) *FieldError {
	return &FieldError{Field: field, Message: message, Err: err}
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Fields は err に含まれる FieldError をフィールド名ごとのメッセージに展開します。
// errors.Join で束ねられたエラーも辿ります。FieldError を含まなければ nil を返します。
func Fields(err error) map[string][]string {
	var out map[string][]string
	walk(err, func(fe *FieldError) {
		if out == nil {
			out = make(map[string][]string)
		}
		out[fe.Field] = append(out[fe.Field], fe.Message)
	})
	return out
}

// IsValidation は err が FieldError を含むかを返します。
func IsValidation(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}

func walk(err error, visit func(*FieldError)) {
	if err == nil {
		return
	}
	if fe, ok := err.(*FieldError); ok {
		visit(fe)
		return
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			walk(inner, visit)
		}
	case interface{ Unwrap() error }:
		walk(u.Unwrap(), visit)
	}
}

// Zaparoo Runtimes
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Runtimes.
//
// Zaparoo Runtimes is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Runtimes is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Runtimes.  If not, see <http://www.gnu.org/licenses/>.

package options

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// TagName is the struct tag read by Decode.
const TagName = "option"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode reads the keys of bag named by `option` struct tags into dest and
// validates the result with `validate` tags. Input is weakly typed, so
// "true" decodes into a bool and "3" into an int. Keys dest does not know
// about are ignored; the bag is shared with the command line normalizer.
//
// A value that fails to decode or validate leaves its field at the zero
// value. The other fields keep what was decoded, so the returned error
// describes what was dropped rather than a failed decode.
func Decode(bag Bag, dest any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dest,
		TagName:          TagName,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	var errs []error
	if err := decoder.Decode(map[string]any(bag)); err != nil {
		errs = append(errs, fmt.Errorf("failed to decode options: %w", err))
	}

	if err := validate.Struct(dest); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return fmt.Errorf("validation failed: %w", err)
		}
		msgs := make([]string, 0, len(validationErrors))
		for _, fe := range validationErrors {
			resetField(dest, fe.StructNamespace())
			msgs = append(msgs, fmt.Sprintf(
				"%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag(),
			))
		}
		errs = append(errs, fmt.Errorf("invalid options: %s", strings.Join(msgs, "; ")))
	}

	return errors.Join(errs...)
}

// resetField zeroes the field at namespace, given as Struct.Field.Sub.
func resetField(dest any, namespace string) {
	v := reflect.ValueOf(dest)
	for v.Kind() == reflect.Pointer && !v.IsNil() {
		v = v.Elem()
	}
	parts := strings.Split(namespace, ".")
	for _, name := range parts[1:] {
		for v.Kind() == reflect.Pointer && !v.IsNil() {
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return
		}
		v = v.FieldByName(name)
		if !v.IsValid() {
			return
		}
	}
	if v.CanSet() {
		v.SetZero()
	}
}

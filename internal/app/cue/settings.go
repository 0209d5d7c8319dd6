package cue

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// decodeSettings decodes a settings map into out, applies defaults and validates it.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

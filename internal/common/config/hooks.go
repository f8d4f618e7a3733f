package config

import (
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// CustomHooks replaces viper's default decode hook. The default duration and slice hooks are kept, and any config
// type implementing encoding.TextUnmarshaler is decoded from its string form.
var CustomHooks = []viper.DecoderConfigOption{
	viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		TrimmedStringHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)),
}

// TrimmedStringHookFunc strips surrounding whitespace from every string value, which mostly matters for
// paths and connection parameters supplied through environment variables.
func TrimmedStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		return strings.TrimSpace(data.(string)), nil
	}
}

// Package validation validates configuration and request descriptors.
//
// Struct tag validation uses go-playground/validator:
//
//	type StreamConfig struct {
//	    URL         string `mapstructure:"url" validate:"required,url"`
//	    MaxAttempts int    `mapstructure:"max_attempts" validate:"gte=0"`
//	}
//	err := validation.Validate(cfg)
//
// Programmatic checks collect errors the same way:
//
//	v := validation.New()
//	v.Required("path", d.Path).OneOf("method", d.Method, methods)
//	err := v.Err()
//
// Both return *Error, which lists every offending field.
package validation

package credential

import "errors"

// Config selects one credential source. At most one field may be set; an
// empty Config yields no supplier.
type Config struct {
	// Token is a static bearer token.
	Token string `yaml:"token" mapstructure:"token"`
	// Env names an environment variable read on every call.
	Env string `yaml:"env" mapstructure:"env"`
	// File is a path read on every call.
	File string     `yaml:"file" mapstructure:"file"`
	JWT  *JWTConfig `yaml:"jwt" mapstructure:"jwt"`
}

// ErrAmbiguous is returned when more than one source is configured.
var ErrAmbiguous = errors.New("credential: configure only one of token, env, file, jwt")

// Supplier builds the configured supplier. It returns nil, nil when no
// source is set.
func (c Config) Supplier() (Supplier, error) {
	n := 0
	for _, set := range []bool{c.Token != "", c.Env != "", c.File != "", c.JWT != nil} {
		if set {
			n++
		}
	}
	if n > 1 {
		return nil, ErrAmbiguous
	}
	switch {
	case c.Token != "":
		return Static(c.Token), nil
	case c.Env != "":
		return Env(c.Env), nil
	case c.File != "":
		return File(c.File), nil
	case c.JWT != nil:
		return JWT(*c.JWT)
	default:
		return nil, nil
	}
}

package staticmap

import (
	core "github.com/a-ayari03/POOL-AI/internal/core/staticmap"
	"github.com/a-ayari03/POOL-AI/internal/pkg/config"
)

// OptionsFrom maps the configuration section onto request options.
func OptionsFrom(c config.StaticMapConfig) core.Options {
	return core.Options{
		BaseURL:   c.BaseURL,
		APIKey:    c.APIKey,
		Format:    c.Format,
		MapType:   c.MapType,
		PathStyle: c.PathStyle,
	}
}

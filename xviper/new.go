package xviper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Option is a configuration step applied to a Viper instance
type Option func(*viper.Viper) error

func AddConfigPaths(paths ...string) Option {
	return func(v *viper.Viper) error {
		for _, p := range paths {
			v.AddConfigPath(p)
		}

		return nil
	}
}

// SetEnvPrefix sets the environment prefix.  Dashes in keys map to underscores in variable names,
// so the key "log-level" is read from PREFIX_LOG_LEVEL.
func SetEnvPrefix(prefix string) Option {
	return func(v *viper.Viper) error {
		v.SetEnvPrefix(prefix)
		v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		return nil
	}
}

func SetConfigName(name string) Option {
	return func(v *viper.Viper) error {
		v.SetConfigName(name)
		return nil
	}
}

func AutomaticEnv(v *viper.Viper) error {
	v.AutomaticEnv()
	return nil
}

func BindPFlags(fs *pflag.FlagSet) Option {
	return func(v *viper.Viper) error {
		return v.BindPFlags(fs)
	}
}

// BindConfigFile uses the value of the given flag, when set, as the fully-qualified configuration file.
func BindConfigFile(fs *pflag.FlagSet, flag string) Option {
	return func(v *viper.Viper) error {
		if f := fs.Lookup(flag); f != nil {
			configFile := f.Value.String()
			if len(configFile) > 0 {
				v.SetConfigFile(configFile)
			}
		}

		return nil
	}
}

// ReadInConfig reads the configuration file.  A missing file is only an error when one was
// named explicitly through SetConfigFile.
func ReadInConfig(v *viper.Viper) error {
	err := v.ReadInConfig()

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}

	return err
}

// StdOptions applies the standard conventions for applicationName: the configuration paths
// /etc/<app>, $HOME/.<app> and the working directory, an environment prefix, automatic environment
// lookups, and binding of the flag set.
func StdOptions(applicationName string, fs *pflag.FlagSet) Option {
	return func(v *viper.Viper) error {
		return apply(v,
			AddConfigPaths(
				fmt.Sprintf("/etc/%s", applicationName),
				fmt.Sprintf("$HOME/.%s", applicationName),
				".",
			),
			SetEnvPrefix(applicationName),
			AutomaticEnv,
			SetConfigName(applicationName),
			BindPFlags(fs),
		)
	}
}

func New(o ...Option) (*viper.Viper, error) {
	return Configure(viper.New(), o...)
}

func Configure(v *viper.Viper, o ...Option) (*viper.Viper, error) {
	if v != nil {
		if err := apply(v, o...); err != nil {
			return nil, err
		}
	}

	return v, nil
}

func apply(v *viper.Viper, o ...Option) error {
	for _, f := range o {
		if err := f(v); err != nil {
			return err
		}
	}

	return nil
}

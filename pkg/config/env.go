package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	envPrefix  = "HOTSCHEMA"
	dotEnvFile = ".env"
)

// legacyEnv maps config keys to the flat environment names earlier
// deployments use. HOTSCHEMA_* names always win over these.
var legacyEnv = map[string][]string{
	"database.uri":        {"NEO_URI"},
	"database.username":   {"NEO_USER"},
	"database.password":   {"NEO_PASS"},
	"server.port":         {"PORT"},
	"server.production":   {"PRODUCTION"},
	"source.github.owner": {"GITHUB_REPO_OWNER"},
	"source.github.repo":  {"GITHUB_REPO_NAME"},
	"source.github.path":  {"GITHUB_TARGET_FILE_PATH"},
	"source.github.token": {"GITHUB_ACCESS_TOKEN", "GITHUB_TOKEN"},
	"source.github.ref":   {"GITHUB_TARGET_REF"},
}

// loadDotEnv populates the process environment from a dotenv file.
// Variables already set are left alone; a missing file is ignored.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// bindEnv registers every config key with viper so Unmarshal sees
// environment values even when no config file mentions the key.
func bindEnv(v *viper.Viper) {
	for _, key := range configKeys(reflect.TypeOf(Config{}), "") {
		names := []string{envName(key)}
		names = append(names, legacyEnv[key]...)
		_ = v.BindEnv(append([]string{key}, names...)...)
	}
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// configKeys lists the dotted mapstructure keys of all leaf fields.
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct && f.Type.PkgPath() != "time" {
			keys = append(keys, configKeys(f.Type, key)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

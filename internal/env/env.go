package env

import (
	"os"
	"strings"
)

const (
	local      = "local"
	staging    = "staging"
	production = "production"
)

type Environment struct {
	App     AppEnvironment
	Network NetEnvironment
	Cache   CacheEnvironment
	Rate    RateEnvironment
	Redis   RedisEnvironment
}

type AppEnvironment struct {
	Type     string `validate:"required,lowercase,oneof=local staging production"`
	LogLevel string `validate:"required,oneof=debug info warn error"`
}

func (e AppEnvironment) IsProduction() bool {
	return e.Type == production
}

func (e AppEnvironment) IsStaging() bool {
	return e.Type == staging
}

func (e AppEnvironment) IsLocal() bool {
	return e.Type == local
}

type NetEnvironment struct {
	HttpAddr    string   `validate:"required"`
	CorsOrigins []string `validate:"dive,required,url"`
}

func GetEnvVar(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func getEnvOr(key, fallback string) string {
	if v := GetEnvVar(key); v != "" {
		return v
	}

	return fallback
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}

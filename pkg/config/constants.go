package config

const (
	// EnvPrefix namespaces every environment variable read by Load.
	EnvPrefix = "ESTORE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "ESTORE_DB_DSN"
	EnvDBHost = "ESTORE_DB_HOST"
	EnvDBUser = "ESTORE_DB_USER"
	EnvDBName = "ESTORE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

package config

const (
	// EnvPrefix is the envconfig prefix shared by every setting.
	EnvPrefix = "oja"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "OJA_DB_DSN"
	EnvDBHost = "OJA_DB_HOST"
	EnvDBUser = "OJA_DB_USER"
	EnvDBName = "OJA_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

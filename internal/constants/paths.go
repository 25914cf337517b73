package constants

// DefaultEnvPath is the default path to the .env file
const DefaultEnvPath = "./.env"

// DefaultConfigPath is the default path to the configuration file
const DefaultConfigPath = "./cronrunner.toml"

// EnvJobName is set in a dispatched command's environment to the job name
const EnvJobName = "CRONRUNNER_JOB"

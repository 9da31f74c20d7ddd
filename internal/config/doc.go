// Package config loads the YAML configuration shared by the prosper-api binaries.
//
// Values may reference environment variables as ${VAR}; an optional .env file
// is loaded first so local development does not need exported variables.
package config

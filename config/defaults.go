package config

import "github.com/awantoch/loanscore/constants"

// DefaultConfigPath is the config file read when --config is not given.
const DefaultConfigPath = constants.ConfigFileName

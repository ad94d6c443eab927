// Package config holds the environment-driven application
// configuration, read with cleanenv. Every setting has an env tag and
// a default; Validate covers the ones that cannot default (key
// material).
package config

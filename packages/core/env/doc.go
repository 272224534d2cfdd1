// Package env loads .env files for hammx.
//
// Values from a .env file are exported to the process environment only when
// the variable is not already set, so the shell always wins. Config files
// loaded afterwards can then reference them with ${VAR}.
package env

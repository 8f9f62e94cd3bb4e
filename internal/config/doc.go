// Package config loads the optional ip-sniffer configuration file.
//
// A configuration file supplies scan defaults (worker count, connect
// timeout, progress marker, output format, Docker network preference) so
// that repeated scans do not need the same flags every time. Two formats
// are accepted, chosen by file extension:
//   - .yaml / .yml, parsed with gopkg.in/yaml.v3
//   - .json / .jsonc, parsed after stripping comments and trailing commas
//     with github.com/tidwall/jsonc
//
// Precedence is: explicit command-line flag, then file value, then the
// built-in default. The CLI applies flags on top of the Config returned by
// Load; this package never looks at flags itself.
package config

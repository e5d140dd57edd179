// Package profiles loads named speaker and episode profiles.
//
// A catalog starts from the embedded defaults and layers YAML or JSON files
// from the configured profiles directory on top; a file profile with the same
// name replaces the default. Episode profiles reference a speaker profile by
// name and carry stage provider/model defaults that sit between explicit CLI
// flags and the config file.
package profiles

// Package config holds the auxlab runtime settings.
//
// Settings come from three layers, later ones overriding earlier ones:
//
//  1. Built-in defaults (Default)
//  2. A settings file, TOML or YAML by extension
//  3. Environment variables with the AUXLAB_ prefix
//
// A settings file looks like:
//
//	[engine]
//	sample_rate = 22050
//	udf_paths = ["~/aux/udf", "./udf"]
//
//	[display]
//	precision = 6
//	limit_x = 10
//	limit_y = 10
//	limit_bytes = 256
//	limit_str = 32
//
//	[console]
//	log_level = "info"
//	history_size = 500
//
// Environment variables map SECTION_KEY to section.key, so
// AUXLAB_DISPLAY_LIMIT_X sets display.limit_x. AUXLAB_SAMPLE_RATE,
// AUXLAB_UDF_PATHS, AUXLAB_PRECISION and AUXLAB_LOG_LEVEL are accepted as
// shorthands. UDF paths in the environment use the OS list separator.
//
// Settings are validated as a whole before they reach the engine; Validate
// returns a *ValidationErrors listing every invalid field.
package config

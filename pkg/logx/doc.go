// Package logx is eduadmin's logging layer over zerolog.
//
// A Service owns the sinks (console, JSON file, in-memory ring) and can swap
// them when the config is reloaded; Loggers derived from it follow the swap.
// Components tag their lines with String("comp", name).
package logx

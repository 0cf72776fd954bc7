// Package logx configures caresync's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - a zero value that is a safe no-op (optional deps skip nil checks),
//   - loggers that stay "live" across Service.Apply() config reloads,
//   - call-site fields via logx.String/Int/Err/... helpers.
//
// Components receive a Logger by value; nothing logs through globals.
package logx

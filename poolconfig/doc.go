// Package poolconfig loads worker pool settings from YAML files and WPOOL_*
// environment variables and turns them into wpool options.
package poolconfig

// Package hcl provides the concrete HCL implementation of config.Loader.
// It is responsible for file discovery, HCL parsing and decoding, and the
// translation of decoded blocks into a config.Project, including reading
// the script and CSV files those blocks reference.
package hcl

// Package config defines the format-agnostic project model and the Loader
// interface that turns a project on disk into it.
//
// `config.Project` is the single source of truth for the app package when
// it builds engines and batch runs. Concrete loaders, such as the HCL one,
// live in separate packages.
package config

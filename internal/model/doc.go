// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model holds named collections of compiled formula cells and the
// sheets that cache their values.
//
// # Core Concepts
//
//   - CompiledCell: one `name -- formula` definition after transformation
//     and compilation. A cell that fails to compile is kept, with the failure
//     recorded in its Status, so the rest of the model stays usable.
//
//   - Parameter: the model's override set. Its canonical text names the
//     sheet that caches values computed under those overrides, so each
//     distinct override combination gets its own cache.
//
//   - Model: the cells, the parameter and the lazily created sheets. Every
//     sheet registers an evaluator per cell that binds `t`, runs the compiled
//     expression and rejects values outside ±MaxAbs.
//
// A Model is not safe for concurrent use; the batch runner gives every
// worker its own engine and therefore its own models.
package model

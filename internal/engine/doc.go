// Package engine is the calculation core of a projection run. An Engine
// owns the models, the shared evaluation environment, the assumption and
// expense tables and the compiled-expression memo.
//
// Formulas reach back into the engine through bridge functions registered
// on its compiler: Eval, Sum, Prd, Vector, Assum and GetExpense. Bridge
// calls may recurse into other models and other parameter variants.
//
// An Engine is single-threaded. Run concurrent projections on separate
// engines.
package engine

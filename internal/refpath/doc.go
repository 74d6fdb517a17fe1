/*
Package refpath implements the reference path grammar used to pull values
out of node results.

A path is a dot-separated sequence of segments; each segment may carry one or
more trailing array indices, e.g. `result.items[0].name` or `result.m[1][0]`.
Extraction is a soft operation: anything that cannot be walked yields "not
found" instead of an error.
*/
package refpath

// Package types defines the entities, transaction interfaces and standard
// error values of the bib reference registry: papers held in a
// content-addressed store, stacks that reference them, and the single
// active-stack pointer.
package types

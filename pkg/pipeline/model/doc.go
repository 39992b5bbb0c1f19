// Package model holds the types shared by the pipeline and its options:
// step descriptions, typed step outputs and the option hooks.
package model

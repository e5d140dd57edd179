// Package prompt renders the outline and transcript prompts.
//
// Templates are compiled once into an immutable Registry that callers pass
// around explicitly. Rendering is a pure function of the registry and the
// supplied values: required fields are checked up front and execution runs
// with missingkey=error, so a missing value surfaces as a *TemplateError
// instead of an empty section in the prompt.
package prompt

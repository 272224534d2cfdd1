// Package output prints hammx responses to a terminal.
//
// Printer writes a colored status line, optional headers and the body.
// JSON bodies are pretty printed and can be narrowed with a gjson path.
// JSON writes the whole exchange as one machine readable document.
package output

// Package file provides file-based implementations of driven port interfaces.
// These adapters read and persist data on the local filesystem.
//
// Adapters:
//   - Load / WriteDefault: TOML configuration with environment overrides
//   - PromptStore: user-editable prompt templates with hot reload
package file
